package pace

import (
	"fmt"
	"strconv"
	"strings"
)

// Mapping identifies a PACE mapping variant.
type Mapping int

const (
	GenericMapping Mapping = iota
	IntegratedMapping
	ChipAuthenticationMapping
)

// Agreement identifies the key-agreement family a PACE OID selects.
type Agreement int

const (
	DH Agreement = iota
	ECDH
)

// OIDInfo is the decoded meaning of a published PACE OID, per
// ICAO 9303-11 Table 4: mapping, key-agreement family, cipher, digest and
// key length.
type OIDInfo struct {
	Mapping    Mapping
	Agreement  Agreement
	Cipher     CipherFamily
	KeyLenBits int
}

// CipherFamily names the secure-messaging cipher a PACE OID selects.
type CipherFamily int

const (
	CipherDES3 CipherFamily = iota
	CipherAES
)

// id-PACE arc, ICAO 9303-11 §9.2.3 (bsi-de OID arc 0.4.0.127.0.7.2.2.4).
// Leaf numbers below are the published suffixes for each (mapping, cipher,
// keylen) combination.
const (
	oidPACEDH_GM3DESCBCCBC  = "0.4.0.127.0.7.2.2.4.1.1"
	oidPACEDH_GMAESCBCCMAC128 = "0.4.0.127.0.7.2.2.4.1.2"
	oidPACEDH_GMAESCBCCMAC192 = "0.4.0.127.0.7.2.2.4.1.3"
	oidPACEDH_GMAESCBCCMAC256 = "0.4.0.127.0.7.2.2.4.1.4"

	oidPACEECDH_GM3DESCBCCBC  = "0.4.0.127.0.7.2.2.4.2.1"
	oidPACEECDH_GMAESCBCCMAC128 = "0.4.0.127.0.7.2.2.4.2.2"
	oidPACEECDH_GMAESCBCCMAC192 = "0.4.0.127.0.7.2.2.4.2.3"
	oidPACEECDH_GMAESCBCCMAC256 = "0.4.0.127.0.7.2.2.4.2.4"

	oidPACEDH_IM3DESCBCCBC  = "0.4.0.127.0.7.2.2.4.3.1"
	oidPACEDH_IMAESCBCCMAC128 = "0.4.0.127.0.7.2.2.4.3.2"
	oidPACEDH_IMAESCBCCMAC192 = "0.4.0.127.0.7.2.2.4.3.3"
	oidPACEDH_IMAESCBCCMAC256 = "0.4.0.127.0.7.2.2.4.3.4"

	oidPACEECDH_IM3DESCBCCBC  = "0.4.0.127.0.7.2.2.4.4.1"
	oidPACEECDH_IMAESCBCCMAC128 = "0.4.0.127.0.7.2.2.4.4.2"
	oidPACEECDH_IMAESCBCCMAC192 = "0.4.0.127.0.7.2.2.4.4.3"
	oidPACEECDH_IMAESCBCCMAC256 = "0.4.0.127.0.7.2.2.4.4.4"

	oidPACEECDH_CAMAESCBCCMAC128 = "0.4.0.127.0.7.2.2.4.6.2"
	oidPACEECDH_CAMAESCBCCMAC192 = "0.4.0.127.0.7.2.2.4.6.3"
	oidPACEECDH_CAMAESCBCCMAC256 = "0.4.0.127.0.7.2.2.4.6.4"
)

var oidTable = map[string]OIDInfo{
	oidPACEDH_GM3DESCBCCBC:      {GenericMapping, DH, CipherDES3, 112},
	oidPACEDH_GMAESCBCCMAC128:   {GenericMapping, DH, CipherAES, 128},
	oidPACEDH_GMAESCBCCMAC192:   {GenericMapping, DH, CipherAES, 192},
	oidPACEDH_GMAESCBCCMAC256:   {GenericMapping, DH, CipherAES, 256},

	oidPACEECDH_GM3DESCBCCBC:    {GenericMapping, ECDH, CipherDES3, 112},
	oidPACEECDH_GMAESCBCCMAC128: {GenericMapping, ECDH, CipherAES, 128},
	oidPACEECDH_GMAESCBCCMAC192: {GenericMapping, ECDH, CipherAES, 192},
	oidPACEECDH_GMAESCBCCMAC256: {GenericMapping, ECDH, CipherAES, 256},

	oidPACEDH_IM3DESCBCCBC:      {IntegratedMapping, DH, CipherDES3, 112},
	oidPACEDH_IMAESCBCCMAC128:   {IntegratedMapping, DH, CipherAES, 128},
	oidPACEDH_IMAESCBCCMAC192:   {IntegratedMapping, DH, CipherAES, 192},
	oidPACEDH_IMAESCBCCMAC256:   {IntegratedMapping, DH, CipherAES, 256},

	oidPACEECDH_IM3DESCBCCBC:    {IntegratedMapping, ECDH, CipherDES3, 112},
	oidPACEECDH_IMAESCBCCMAC128: {IntegratedMapping, ECDH, CipherAES, 128},
	oidPACEECDH_IMAESCBCCMAC192: {IntegratedMapping, ECDH, CipherAES, 192},
	oidPACEECDH_IMAESCBCCMAC256: {IntegratedMapping, ECDH, CipherAES, 256},

	oidPACEECDH_CAMAESCBCCMAC128: {ChipAuthenticationMapping, ECDH, CipherAES, 128},
	oidPACEECDH_CAMAESCBCCMAC192: {ChipAuthenticationMapping, ECDH, CipherAES, 192},
	oidPACEECDH_CAMAESCBCCMAC256: {ChipAuthenticationMapping, ECDH, CipherAES, 256},
}

// LookupOID maps a published PACE OID (dotted-decimal) to its decoded
// parameters.
func LookupOID(oid string) (OIDInfo, error) {
	p, ok := oidTable[oid]
	if !ok {
		return OIDInfo{}, fmt.Errorf("pace: unrecognized OID %q", oid)
	}
	return p, nil
}

// EncodeOIDDER renders a dotted-decimal OID (e.g. "0.4.0.127.0.7.2.2.4.2.2")
// as its DER content octets (the bytes that follow tag 0x06 and its length).
func EncodeOIDDER(oid string) ([]byte, error) {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("pace: EncodeOIDDER: need at least two arcs, got %q", oid)
	}
	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pace: EncodeOIDDER: bad arc %q: %w", p, err)
		}
		arcs[i] = v
	}

	var out []byte
	out = append(out, byte(arcs[0]*40+arcs[1]))
	for _, arc := range arcs[2:] {
		out = append(out, encodeBase128(arc)...)
	}
	return out, nil
}

func encodeBase128(v uint64) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte(v & 0x7F)}, digits...)
		v >>= 7
	}
	for i := 0; i < len(digits)-1; i++ {
		digits[i] |= 0x80
	}
	return digits
}

// KeyReference values for MSE Set AT's password-source byte.
const (
	KeyRefMRZ byte = 0x01
	KeyRefCAN byte = 0x02
	KeyRefPIN byte = 0x03
	KeyRefPUK byte = 0x04
)

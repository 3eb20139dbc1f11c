// Package pace implements Password Authenticated Connection
// Establishment (ICAO 9303-11 §4.4 / BSI TR-03110), PACE v2's
// Generic-Mapping and Chip-Authentication-Mapping variants over ECDH or
// classical DH, yielding a session SecureChannel.
package pace

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"

	"mrtdterm/apdu"
	"mrtdterm/cryptokit"
	"mrtdterm/securechannel"
	"mrtdterm/tlv"
)

// Tags used in PACE's chained GENERAL AUTHENTICATE exchange.
const (
	tagEncNonce     uint32 = 0x80
	tagMappingData  uint32 = 0x81
	tagMappingDataR uint32 = 0x82
	tagEphPublic    uint32 = 0x83
	tagEphPublicR   uint32 = 0x84
	tagAuthToken    uint32 = 0x85
	tagAuthTokenR   uint32 = 0x86
	tagCAData       uint32 = 0x8A
	tagDynAuth      uint32 = 0x7C
	tagOIDDER       uint32 = 0x06
	tagSetATOID     uint32 = 0x80 // MSE Set AT's cryptographic mechanism reference DO
	tagECPublicDO   uint32 = 0x86
	tagDHPublicDO   uint32 = 0x84
	tagPubKeyDO     uint32 = 0x7F49
)

// Result is the outcome of a successful PACE run.
type Result struct {
	KEnc       []byte
	KMac       []byte
	Channel    *securechannel.Channel
	CAData     []byte // non-nil only for the Chip Authentication Mapping variant
	PICCEphPub []byte // encoded PICC ephemeral public key, for EAC cross-checks
}

// Params bundles everything needed to run PACE: the negotiated OID, which
// domain parameters to use, the password key reference, and the static
// password-derived key. Whether to look for encrypted chip-authentication
// data follows from the OID's mapping.
type Params struct {
	OID           string
	DomainParamID StandardizedDomainParameters
	KeyRef        byte
	Kpi           []byte // K_pi, already KDF'd to the right length for OID's cipher
}

// Run executes the PACE state machine over svc (which must not yet have a
// secure channel installed), using previousChannel's SSC for the AES
// carryover rule if non-nil (see package securechannel's NewAES doc and
// §9's design notes on this SAC carryover).
func Run(svc *apdu.Service, p Params, previousChannel *securechannel.Channel) (*Result, error) {
	algo, err := LookupOID(p.OID)
	if err != nil {
		return nil, fmt.Errorf("pace: %w", err)
	}

	oidDER, err := EncodeOIDDER(p.OID)
	if err != nil {
		return nil, fmt.Errorf("pace: %w", err)
	}
	setAT := append(tlv.Wrap(tagSetATOID, oidDER), tlv.Wrap(0x83, []byte{p.KeyRef})...)
	if err := svc.MSESetATMutualAuthPACE(setAT); err != nil {
		return nil, &ErrFailed{Reason: "MSE Set AT", SW: swOf(err)}
	}

	// Step 1: encrypted nonce.
	step1Resp, err := svc.GeneralAuthenticate(tlv.Wrap(tagDynAuth, nil), false)
	if err != nil {
		return nil, &ErrFailed{Reason: "encrypted nonce exchange", SW: swOf(err)}
	}
	encNonce, err := unwrapDynAuth(step1Resp, tagEncNonce)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("encrypted nonce: %v", err)}
	}
	s, err := decryptNonce(algo, p.Kpi, encNonce)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("nonce decryption: %v", err)}
	}

	switch algo.Mapping {
	case IntegratedMapping:
		return nil, &ErrUnsupported{Feature: "Integrated Mapping"}
	case GenericMapping, ChipAuthenticationMapping:
	default:
		return nil, &ErrUnsupported{Feature: fmt.Sprintf("mapping %v", algo.Mapping)}
	}

	if algo.Agreement == ECDH {
		return runECDH(svc, algo, p, s, previousChannel)
	}
	return runDH(svc, algo, p, s, previousChannel)
}

func runECDH(svc *apdu.Service, algo OIDInfo, p Params, s []byte, previousChannel *securechannel.Channel) (*Result, error) {
	curve, err := ECDomainParams(p.DomainParamID)
	if err != nil {
		return nil, &ErrFailed{Reason: err.Error()}
	}
	sInt := new(big.Int).SetBytes(s)

	// Step 2: mapping.
	pcdMappingKey, err := cryptokit.GenerateECKeyPair(curve)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("generate mapping keypair: %v", err)}
	}
	mappingResp, err := svc.GeneralAuthenticate(
		tlv.Wrap(tagDynAuth, tlv.Wrap(tagMappingData, cryptokit.EncodePoint(curve, pcdMappingKey.X, pcdMappingKey.Y))),
		false,
	)
	if err != nil {
		return nil, &ErrFailed{Reason: "mapping exchange", SW: swOf(err)}
	}
	piccMappingRaw, err := unwrapDynAuth(mappingResp, tagMappingDataR)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("mapping response: %v", err)}
	}
	piccMapX, piccMapY, err := cryptokit.DecodePoint(curve, piccMappingRaw)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("decode PICC mapping key: %v", err)}
	}

	mapped, err := MapNonceECGeneric(curve, pcdMappingKey, piccMapX, piccMapY, sInt)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("nonce mapping: %v", err)}
	}

	// Step 3: ephemeral key agreement over the mapped curve.
	pcdEph, err := generateECKeyOnMappedBase(mapped)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("generate ephemeral keypair: %v", err)}
	}
	ephResp, err := svc.GeneralAuthenticate(
		tlv.Wrap(tagDynAuth, tlv.Wrap(tagEphPublic, cryptokit.EncodePoint(mapped.Curve, pcdEph.X, pcdEph.Y))),
		false,
	)
	if err != nil {
		return nil, &ErrFailed{Reason: "ephemeral key exchange", SW: swOf(err)}
	}
	piccEphRaw, err := unwrapDynAuth(ephResp, tagEphPublicR)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("ephemeral response: %v", err)}
	}
	piccEphX, piccEphY, err := cryptokit.DecodePoint(mapped.Curve, piccEphRaw)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("decode PICC ephemeral key: %v", err)}
	}
	if pcdEph.X.Cmp(piccEphX) == 0 && pcdEph.Y.Cmp(piccEphY) == 0 {
		return nil, &ErrFailed{Reason: "PCD and PICC ephemeral public keys are equal"}
	}

	shared := cryptokit.ECDH(mapped.Curve, pcdEph.D, piccEphX, piccEphY)
	kEnc, kMac, cipherAlg, keyLen := deriveSessionKeys(algo, shared)

	// Step 4: mutual authentication tokens.
	pcdPubDO := encodePublicKeyDO(p.OID, tagECPublicDO, cryptokit.EncodePoint(mapped.Curve, pcdEph.X, pcdEph.Y))
	piccPubDO := encodePublicKeyDO(p.OID, tagECPublicDO, piccEphRaw)

	tPCD, err := authToken(cipherAlg, kMac, piccPubDO)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("compute T_PCD: %v", err)}
	}
	tokenResp, err := svc.GeneralAuthenticate(tlv.Wrap(tagDynAuth, tlv.Wrap(tagAuthToken, tPCD)), true)
	if err != nil {
		return nil, &ErrFailed{Reason: "authentication token exchange", SW: swOf(err)}
	}
	inner, err := tlv.Unwrap(tagDynAuth, tokenResp)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("authentication token response: %v", err)}
	}
	tPICC, err := tlv.First(inner, tagAuthTokenR)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("missing T_PICC: %v", err)}
	}
	wantTPICC, err := authToken(cipherAlg, kMac, pcdPubDO)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("compute expected T_PICC: %v", err)}
	}
	if !bytes.Equal(tPICC.Value, wantTPICC) {
		return nil, &ErrFailed{Reason: "T_PICC authentication token mismatch"}
	}

	var caData []byte
	if algo.Mapping == ChipAuthenticationMapping {
		encCAData, err := tlv.First(inner, tagCAData)
		if err == nil {
			caData, err = decryptCAData(kEnc, encCAData.Value)
			if err != nil {
				return nil, &ErrFailed{Reason: fmt.Sprintf("CA data decryption: %v", err)}
			}
		}
	}

	channel, err := installChannel(cipherAlg, keyLen, kEnc, kMac, previousChannel)
	if err != nil {
		return nil, &ErrFailed{Reason: err.Error()}
	}

	return &Result{KEnc: kEnc, KMac: kMac, Channel: channel, CAData: caData, PICCEphPub: piccEphRaw}, nil
}

func runDH(svc *apdu.Service, algo OIDInfo, p Params, s []byte, previousChannel *securechannel.Channel) (*Result, error) {
	params, err := DHDomainParams(p.DomainParamID)
	if err != nil {
		return nil, &ErrFailed{Reason: err.Error()}
	}
	sInt := new(big.Int).SetBytes(s)

	pcdMappingKey, err := cryptokit.GenerateDHKeyPair(params)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("generate mapping keypair: %v", err)}
	}
	mappingResp, err := svc.GeneralAuthenticate(
		tlv.Wrap(tagDynAuth, tlv.Wrap(tagMappingData, cryptokit.DHEncodePublic(params, pcdMappingKey.Pub))),
		false,
	)
	if err != nil {
		return nil, &ErrFailed{Reason: "mapping exchange", SW: swOf(err)}
	}
	piccMappingRaw, err := unwrapDynAuth(mappingResp, tagMappingDataR)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("mapping response: %v", err)}
	}
	piccMappingPub := cryptokit.DHDecodePublic(piccMappingRaw)

	mapped := MapNonceDHGeneric(params, pcdMappingKey, piccMappingPub, sInt)

	pcdEph, err := cryptokit.GenerateDHKeyPair(mapped.Params)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("generate ephemeral keypair: %v", err)}
	}
	ephResp, err := svc.GeneralAuthenticate(
		tlv.Wrap(tagDynAuth, tlv.Wrap(tagEphPublic, cryptokit.DHEncodePublic(mapped.Params, pcdEph.Pub))),
		false,
	)
	if err != nil {
		return nil, &ErrFailed{Reason: "ephemeral key exchange", SW: swOf(err)}
	}
	piccEphRaw, err := unwrapDynAuth(ephResp, tagEphPublicR)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("ephemeral response: %v", err)}
	}
	piccEphPub := cryptokit.DHDecodePublic(piccEphRaw)
	if pcdEph.Pub.Cmp(piccEphPub) == 0 {
		return nil, &ErrFailed{Reason: "PCD and PICC ephemeral public keys are equal"}
	}

	shared := cryptokit.DH(mapped.Params, pcdEph.X, piccEphPub)
	kEnc, kMac, cipherAlg, keyLen := deriveSessionKeys(algo, shared)

	pcdPubDO := encodePublicKeyDO(p.OID, tagDHPublicDO, cryptokit.DHEncodePublic(mapped.Params, pcdEph.Pub))
	piccPubDO := encodePublicKeyDO(p.OID, tagDHPublicDO, piccEphRaw)

	tPCD, err := authToken(cipherAlg, kMac, piccPubDO)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("compute T_PCD: %v", err)}
	}
	tokenResp, err := svc.GeneralAuthenticate(tlv.Wrap(tagDynAuth, tlv.Wrap(tagAuthToken, tPCD)), true)
	if err != nil {
		return nil, &ErrFailed{Reason: "authentication token exchange", SW: swOf(err)}
	}
	inner, err := tlv.Unwrap(tagDynAuth, tokenResp)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("authentication token response: %v", err)}
	}
	tPICC, err := tlv.First(inner, tagAuthTokenR)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("missing T_PICC: %v", err)}
	}
	wantTPICC, err := authToken(cipherAlg, kMac, pcdPubDO)
	if err != nil {
		return nil, &ErrFailed{Reason: fmt.Sprintf("compute expected T_PICC: %v", err)}
	}
	if !bytes.Equal(tPICC.Value, wantTPICC) {
		return nil, &ErrFailed{Reason: "T_PICC authentication token mismatch"}
	}

	channel, err := installChannel(cipherAlg, keyLen, kEnc, kMac, previousChannel)
	if err != nil {
		return nil, &ErrFailed{Reason: err.Error()}
	}
	return &Result{KEnc: kEnc, KMac: kMac, Channel: channel, PICCEphPub: piccEphRaw}, nil
}

func decryptNonce(algo OIDInfo, kpi []byte, encNonce []byte) ([]byte, error) {
	if algo.Cipher == CipherAES {
		return cryptokit.AESCBCDecrypt(kpi, make([]byte, 16), encNonce)
	}
	return cryptokit.TripleDESCBCDecrypt(kpi, make([]byte, 8), encNonce)
}

func deriveSessionKeys(algo OIDInfo, shared []byte) (kEnc, kMac []byte, cipherAlg cryptokit.CipherAlg, keyLenBytes int) {
	if algo.Cipher == CipherAES {
		keyLenBytes = algo.KeyLenBits / 8
		return cryptokit.KDF(shared, cryptokit.KDFEnc, cryptokit.AES, keyLenBytes),
			cryptokit.KDF(shared, cryptokit.KDFMac, cryptokit.AES, keyLenBytes),
			cryptokit.AES, keyLenBytes
	}
	return cryptokit.KDF(shared, cryptokit.KDFEnc, cryptokit.TripleDES, 16),
		cryptokit.KDF(shared, cryptokit.KDFMac, cryptokit.TripleDES, 16),
		cryptokit.TripleDES, 16
}

func authToken(cipherAlg cryptokit.CipherAlg, kMac, pubKeyDO []byte) ([]byte, error) {
	if cipherAlg == cryptokit.AES {
		full, err := cryptokit.AESCMAC(kMac, pubKeyDO)
		if err != nil {
			return nil, err
		}
		return cryptokit.TruncMAC8(full), nil
	}
	return cryptokit.RetailMAC(kMac, make([]byte, 8), cryptokit.Pad(pubKeyDO, 8))
}

// decryptCAData decrypts the Chip Authentication Mapping's post-step
// encrypted CA public data with IV = all-ones block (§4.7 step 6).
func decryptCAData(kEnc, encCAData []byte) ([]byte, error) {
	iv := bytes.Repeat([]byte{0xFF}, 16)
	padded, err := cryptokit.AESCBCDecrypt(kEnc, iv, encCAData)
	if err != nil {
		return nil, err
	}
	return cryptokit.Unpad(padded)
}

// encodePublicKeyDO wraps OID and a raw public-key encoding (EC point or
// DH integer, under pubKeyTag) into the 0x7F49 "encode_public_key_DO"
// structure used by PACE's authentication-token input (§4.7 step 4).
func encodePublicKeyDO(oid string, pubKeyTag uint32, pubKeyRaw []byte) []byte {
	oidDER, err := EncodeOIDDER(oid)
	if err != nil {
		oidDER = nil
	}
	inner := tlv.Wrap(tagOIDDER, oidDER)
	inner = append(inner, tlv.Wrap(pubKeyTag, pubKeyRaw)...)
	return tlv.Wrap(tagPubKeyDO, inner)
}

func unwrapDynAuth(resp []byte, innerTag uint32) ([]byte, error) {
	inner, err := tlv.Unwrap(tagDynAuth, resp)
	if err != nil {
		return nil, err
	}
	obj, err := tlv.First(inner, innerTag)
	if err != nil {
		return nil, err
	}
	return obj.Value, nil
}

func installChannel(cipherAlg cryptokit.CipherAlg, keyLenBytes int, kEnc, kMac []byte, previousChannel *securechannel.Channel) (*securechannel.Channel, error) {
	if cipherAlg == cryptokit.TripleDES {
		return securechannel.New3DES(kEnc, kMac, securechannel.ZeroSSC(cryptokit.TripleDES))
	}
	initialSSC := securechannel.ZeroSSC(cryptokit.AES)
	if previousChannel != nil && previousChannel.Cipher == cryptokit.AES {
		initialSSC = previousChannel.SSC
	}
	return securechannel.NewAES(kEnc, kMac, initialSSC)
}

func generateECKeyOnMappedBase(mapped *ECMappedParams) (*cryptokit.ECKeyPair, error) {
	// Ephemeral private scalar: a field-sized random value, not reduced
	// mod the group order; ScalarMult gives the same point as for the
	// reduced scalar, so it serves this mapped-base-point key agreement.
	byteLen := cryptokit.FieldLen(mapped.Curve)
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	d := new(big.Int).SetBytes(buf)
	x, y := mapped.Curve.ScalarMult(mapped.Gx, mapped.Gy, d.Bytes())
	return &cryptokit.ECKeyPair{Curve: mapped.Curve, D: d, X: x, Y: y}, nil
}

func swOf(err error) uint16 {
	if swErr, ok := err.(*apdu.Error); ok {
		return swErr.SW
	}
	return 0
}

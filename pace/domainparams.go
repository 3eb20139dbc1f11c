package pace

import (
	"crypto/elliptic"
	"fmt"
	"math/big"

	"mrtdterm/cryptokit"
)

// StandardizedDomainParameters selects one of the domain parameter IDs
// published in ICAO 9303-11 Table 6 (shared with TR-03110). Only the IDs a
// real MRTD is likely to announce in EF.CardAccess are implemented; others
// fail with ErrUnsupported.
type StandardizedDomainParameters int

const (
	DP_GFP1024Modp StandardizedDomainParameters = 0
	DP_ECP192r1    StandardizedDomainParameters = 8
	DP_ECP224r1    StandardizedDomainParameters = 10
	DP_ECP256r1    StandardizedDomainParameters = 13
	DP_ECP384r1    StandardizedDomainParameters = 16
	DP_ECP521r1    StandardizedDomainParameters = 17
)

// ECDomainParams resolves id to a standard curve.
func ECDomainParams(id StandardizedDomainParameters) (elliptic.Curve, error) {
	switch id {
	case DP_ECP224r1:
		return elliptic.P224(), nil
	case DP_ECP256r1:
		return elliptic.P256(), nil
	case DP_ECP384r1:
		return elliptic.P384(), nil
	case DP_ECP521r1:
		return elliptic.P521(), nil
	default:
		return nil, &ErrUnsupported{Feature: fmt.Sprintf("EC domain parameter id %d", id)}
	}
}

// modp1024 is RFC 2409 "Second Oakley Group", the classical DH group
// published as standardized domain parameter id 0.
var modp1024 = mustHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
	"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519" +
	"B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7" +
	"EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F" +
	"24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF")

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("pace: invalid embedded DH modulus")
	}
	return n
}

// DHDomainParams resolves id to a classical DH group.
func DHDomainParams(id StandardizedDomainParameters) (*cryptokit.DHParams, error) {
	if id != DP_GFP1024Modp {
		return nil, &ErrUnsupported{Feature: fmt.Sprintf("DH domain parameter id %d", id)}
	}
	return &cryptokit.DHParams{P: modp1024, G: big.NewInt(2)}, nil
}

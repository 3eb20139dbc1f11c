package cryptokit

import (
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
)

// ECKeyPair is an ephemeral EC key pair generated on a given curve.
type ECKeyPair struct {
	Curve elliptic.Curve
	D     *big.Int // private scalar
	X, Y  *big.Int // public point
}

// GenerateECKeyPair generates a fresh ephemeral EC key pair on curve using
// the process-wide cryptographically secure random source.
func GenerateECKeyPair(curve elliptic.Curve) (*ECKeyPair, error) {
	d, x, y, err := elliptic.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, wrapErr("GenerateECKeyPair", err)
	}
	return &ECKeyPair{Curve: curve, D: new(big.Int).SetBytes(d), X: x, Y: y}, nil
}

// ECDH computes the raw shared secret for sk against peer public point
// (peerX, peerY): the big-endian X-coordinate of sk·peerPoint, left-padded
// to the curve's field size.
func ECDH(curve elliptic.Curve, sk *big.Int, peerX, peerY *big.Int) []byte {
	x, _ := curve.ScalarMult(peerX, peerY, sk.Bytes())
	out := make([]byte, FieldLen(curve))
	x.FillBytes(out)
	return out
}

// ECAddScalarBaseMult computes s·G + (hx, hy) on curve, where G is the
// curve's standard base point. This is PACE Generic Mapping's ephemeral
// generator construction: G' = s·G + H.
func ECAddScalarBaseMult(curve elliptic.Curve, s *big.Int, hx, hy *big.Int) (x, y *big.Int) {
	sx, sy := curve.ScalarBaseMult(s.Bytes())
	return curve.Add(sx, sy, hx, hy)
}

// DHParams describes a classical (non-EC) Diffie-Hellman group: prime
// modulus p and generator g.
type DHParams struct {
	P *big.Int
	G *big.Int
}

// DHKeyPair is an ephemeral DH key pair over a DHParams group.
type DHKeyPair struct {
	Params *DHParams
	X      *big.Int // private exponent
	Pub    *big.Int // g^X mod p
}

// GenerateDHKeyPair generates a fresh ephemeral DH key pair in the group.
func GenerateDHKeyPair(params *DHParams) (*DHKeyPair, error) {
	if params.P == nil || params.G == nil {
		return nil, fmt.Errorf("cryptokit: GenerateDHKeyPair: incomplete group parameters")
	}
	// private exponent in [2, p-2]
	bitLen := params.P.BitLen()
	var x *big.Int
	for {
		buf := make([]byte, (bitLen+7)/8)
		if _, err := rand.Read(buf); err != nil {
			return nil, wrapErr("GenerateDHKeyPair", err)
		}
		x = new(big.Int).SetBytes(buf)
		x.Mod(x, new(big.Int).Sub(params.P, big.NewInt(3)))
		x.Add(x, big.NewInt(2))
		if x.Sign() > 0 {
			break
		}
	}
	pub := new(big.Int).Exp(params.G, x, params.P)
	return &DHKeyPair{Params: params, X: x, Pub: pub}, nil
}

// DH computes the shared secret g^(x*peerX) mod p as a big-endian integer
// left-padded to the byte length of p.
func DH(params *DHParams, x *big.Int, peerPub *big.Int) []byte {
	shared := new(big.Int).Exp(peerPub, x, params.P)
	out := make([]byte, (params.P.BitLen()+7)/8)
	shared.FillBytes(out)
	return out
}

// DHMapNonce computes the PACE Generic Mapping ephemeral generator in a
// classical DH group: g' = g^s * h mod p.
func DHMapNonce(params *DHParams, s *big.Int, h *big.Int) *big.Int {
	gs := new(big.Int).Exp(params.G, s, params.P)
	return new(big.Int).Mod(new(big.Int).Mul(gs, h), params.P)
}

// DHEncodePublic renders a DH public value as a big-endian integer,
// left-padded to the byte length of the group's prime.
func DHEncodePublic(params *DHParams, pub *big.Int) []byte {
	out := make([]byte, (params.P.BitLen()+7)/8)
	pub.FillBytes(out)
	return out
}

// DHDecodePublic parses a big-endian DH public value.
func DHDecodePublic(data []byte) *big.Int {
	return new(big.Int).SetBytes(data)
}

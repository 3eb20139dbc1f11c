package pace

import (
	"crypto/elliptic"
	"math/big"

	"mrtdterm/cryptokit"
)

// ECMappedParams is the ephemeral EC domain (new base point G', same
// curve) produced by step 2 of the PACE state machine.
type ECMappedParams struct {
	Curve elliptic.Curve
	Gx, Gy *big.Int
}

// MapNonceECGeneric implements the Generic Mapping (and, identically at
// this step, Chip Authentication Mapping) construction for ECDH groups:
// agree on H = KA(pcdMappingKey, piccMappingPub), then compute the new
// generator G' = s·G + H.
func MapNonceECGeneric(curve elliptic.Curve, pcdMappingKey *cryptokit.ECKeyPair, piccMappingX, piccMappingY *big.Int, s *big.Int) (*ECMappedParams, error) {
	hx, hy := curve.ScalarMult(piccMappingX, piccMappingY, pcdMappingKey.D.Bytes())
	gx, gy := cryptokit.ECAddScalarBaseMult(curve, s, hx, hy)
	return &ECMappedParams{Curve: curve, Gx: gx, Gy: gy}, nil
}

// DHMappedParams is the ephemeral DH group (new generator g', same
// modulus) produced by step 2 for classical DH groups.
type DHMappedParams struct {
	Params *cryptokit.DHParams
}

// MapNonceDHGeneric is Generic/CAM Mapping's DH analogue: h = g^(mappingKey
// * picc mapping pub... ) computed via DH, g' = g^s * h mod p.
func MapNonceDHGeneric(params *cryptokit.DHParams, pcdMappingKey *cryptokit.DHKeyPair, piccMappingPub *big.Int, s *big.Int) *DHMappedParams {
	h := new(big.Int).SetBytes(cryptokit.DH(params, pcdMappingKey.X, piccMappingPub))
	gPrime := cryptokit.DHMapNonce(params, s, h)
	return &DHMappedParams{Params: &cryptokit.DHParams{P: params.P, G: gPrime}}
}

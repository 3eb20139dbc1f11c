package cryptokit

import (
	"crypto/elliptic"
	"fmt"
	"math/big"
)

// EncodePoint renders (x, y) as an uncompressed SEC1 EC point:
// 0x04 || X || Y, each coordinate left-padded with zeros to the curve's
// field size. Smartcard-side this is wrapped under TLV tag 0x86.
func EncodePoint(curve elliptic.Curve, x, y *big.Int) []byte {
	byteLen := (curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*byteLen)
	out[0] = 0x04
	x.FillBytes(out[1 : 1+byteLen])
	y.FillBytes(out[1+byteLen : 1+2*byteLen])
	return out
}

// DecodePoint parses an uncompressed SEC1 EC point for curve.
func DecodePoint(curve elliptic.Curve, data []byte) (x, y *big.Int, err error) {
	byteLen := (curve.Params().BitSize + 7) / 8
	if len(data) != 1+2*byteLen {
		return nil, nil, fmt.Errorf("cryptokit: DecodePoint: expected %d bytes, got %d", 1+2*byteLen, len(data))
	}
	if data[0] != 0x04 {
		return nil, nil, fmt.Errorf("cryptokit: DecodePoint: unsupported point format 0x%02x", data[0])
	}
	x = new(big.Int).SetBytes(data[1 : 1+byteLen])
	y = new(big.Int).SetBytes(data[1+byteLen : 1+2*byteLen])
	if !curve.IsOnCurve(x, y) {
		return nil, nil, fmt.Errorf("cryptokit: DecodePoint: point is not on curve")
	}
	return x, y, nil
}

// FieldLen returns the byte length of curve's field elements.
func FieldLen(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

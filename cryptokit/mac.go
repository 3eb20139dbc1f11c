package cryptokit

import (
	"crypto/aes"
	"crypto/des"
	"fmt"

	"github.com/aead/cmac"
)

// RetailMAC computes ISO/IEC 9797-1 MAC Algorithm 3 ("retail MAC"): CBC-MAC
// under the 3DES key's first component, with a final
// DES-ECB-decrypt(K2)/DES-ECB-encrypt(K1) transform. icv is the 8-byte
// initial chaining value (zero for a fresh computation). data must already
// be padded to an 8-byte boundary (ISO 7816-4 padding); callers that need
// padding applied should use Pad before calling RetailMAC, not after.
func RetailMAC(key, icv, data []byte) ([]byte, error) {
	key24, err := TripleDESKey(key)
	if err != nil {
		return nil, wrapErr("RetailMAC", err)
	}
	if len(icv) != 8 {
		return nil, fmt.Errorf("cryptokit: RetailMAC: ICV must be 8 bytes, got %d", len(icv))
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("cryptokit: RetailMAC: data must be padded to an 8-byte boundary, got %d bytes", len(data))
	}
	k1, k2 := key24[0:8], key24[8:16]

	c1, err := des.NewCipher(k1)
	if err != nil {
		return nil, wrapErr("RetailMAC", err)
	}

	chain := make([]byte, 8)
	copy(chain, icv)
	block := make([]byte, 8)
	for i := 0; i < len(data); i += 8 {
		copy(block, XOR(data[i:i+8], chain))
		c1.Encrypt(chain, block)
	}

	final, err := DESECBDecrypt(k2, chain)
	if err != nil {
		return nil, wrapErr("RetailMAC", err)
	}
	final, err = DESECBEncrypt(k1, final)
	if err != nil {
		return nil, wrapErr("RetailMAC", err)
	}
	return final, nil
}

// AESCMAC computes the full 16-byte AES-CMAC (RFC 4493 / NIST SP 800-38B)
// of data under key (16, 24 or 32 bytes).
func AESCMAC(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapErr("AESCMAC", err)
	}
	mac, err := cmac.New(block)
	if err != nil {
		return nil, wrapErr("AESCMAC", err)
	}
	mac.Write(data)
	return mac.Sum(nil), nil
}

// TruncMAC8 truncates a MAC to the 8-byte form used for secure-messaging
// C-MAC/R-MAC tokens and PACE authentication tokens.
func TruncMAC8(mac []byte) []byte {
	if len(mac) <= 8 {
		return mac
	}
	return mac[:8]
}

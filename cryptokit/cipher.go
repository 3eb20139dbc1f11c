package cryptokit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

// Pad applies ISO/IEC 7816-4 padding method 2: a mandatory 0x80 byte
// followed by 0x00 bytes until the result is a multiple of blockSize.
func Pad(data []byte, blockSize int) []byte {
	out := make([]byte, len(data), len(data)+blockSize)
	copy(out, data)
	out = append(out, 0x80)
	for len(out)%blockSize != 0 {
		out = append(out, 0x00)
	}
	return out
}

// Unpad reverses Pad, failing if the trailing bytes are not a valid
// 0x80 00... padding sequence.
func Unpad(data []byte) ([]byte, error) {
	for i := len(data) - 1; i >= 0; i-- {
		switch data[i] {
		case 0x00:
			continue
		case 0x80:
			return data[:i], nil
		default:
			return nil, fmt.Errorf("invalid padding byte 0x%02x", data[i])
		}
	}
	return nil, fmt.Errorf("no padding marker found")
}

// TripleDESKey expands a 16-byte two-key 3DES key into the 24-byte
// K1||K2||K1 form crypto/des expects.
func TripleDESKey(k []byte) ([]byte, error) {
	switch len(k) {
	case 24:
		out := make([]byte, 24)
		copy(out, k)
		return out, nil
	case 16:
		out := make([]byte, 24)
		copy(out[0:16], k)
		copy(out[16:24], k[0:8])
		return out, nil
	default:
		return nil, fmt.Errorf("3DES key must be 16 or 24 bytes, got %d", len(k))
	}
}

// TripleDESCBCEncrypt encrypts data (a multiple of 8 bytes) under 3DES-CBC
// with the given 8-byte IV. No padding is applied; callers pad first.
func TripleDESCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	key24, err := TripleDESKey(key)
	if err != nil {
		return nil, wrapErr("TripleDESCBCEncrypt", err)
	}
	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, wrapErr("TripleDESCBCEncrypt", err)
	}
	return cbcEncrypt(block, iv, data)
}

// TripleDESCBCDecrypt decrypts data under 3DES-CBC with the given IV.
func TripleDESCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	key24, err := TripleDESKey(key)
	if err != nil {
		return nil, wrapErr("TripleDESCBCDecrypt", err)
	}
	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, wrapErr("TripleDESCBCDecrypt", err)
	}
	return cbcDecrypt(block, iv, data)
}

// AESCBCEncrypt encrypts data (a multiple of 16 bytes) under AES-CBC with
// the given 16-byte IV.
func AESCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapErr("AESCBCEncrypt", err)
	}
	return cbcEncrypt(block, iv, data)
}

// AESCBCDecrypt decrypts data under AES-CBC with the given IV.
func AESCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapErr("AESCBCDecrypt", err)
	}
	return cbcDecrypt(block, iv, data)
}

func cbcEncrypt(block cipher.Block, iv, data []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(iv) != bs {
		return nil, fmt.Errorf("IV must be %d bytes, got %d", bs, len(iv))
	}
	if len(data)%bs != 0 {
		return nil, fmt.Errorf("data must be a multiple of %d bytes, got %d", bs, len(data))
	}
	out := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, data)
	return out, nil
}

func cbcDecrypt(block cipher.Block, iv, data []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(iv) != bs {
		return nil, fmt.Errorf("IV must be %d bytes, got %d", bs, len(iv))
	}
	if len(data)%bs != 0 {
		return nil, fmt.Errorf("data must be a multiple of %d bytes, got %d", bs, len(data))
	}
	out := make([]byte, len(data))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, data)
	return out, nil
}

// DESECBEncrypt encrypts a single 8-byte block with single-DES ECB. Used
// only as a building block of RetailMAC's final transformation.
func DESECBEncrypt(key8, block8 []byte) ([]byte, error) {
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, wrapErr("DESECBEncrypt", err)
	}
	out := make([]byte, 8)
	c.Encrypt(out, block8)
	return out, nil
}

// DESECBDecrypt decrypts a single 8-byte block with single-DES ECB.
func DESECBDecrypt(key8, block8 []byte) ([]byte, error) {
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, wrapErr("DESECBDecrypt", err)
	}
	out := make([]byte, 8)
	c.Decrypt(out, block8)
	return out, nil
}

// AESECBEncrypt encrypts a single 16-byte block with AES ECB. Used as a
// building block for deriving the AES CBC IV from the SSC.
func AESECBEncrypt(key, block16 []byte) ([]byte, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapErr("AESECBEncrypt", err)
	}
	if len(block16) != 16 {
		return nil, fmt.Errorf("block must be 16 bytes, got %d", len(block16))
	}
	out := make([]byte, 16)
	c.Encrypt(out, block16)
	return out, nil
}

// XOR returns a ^ b, truncated to the shorter of the two slices.
func XOR(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

package cryptokit

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestPadUnpadRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		bytes.Repeat([]byte{0xAA}, 16),
	}
	for _, c := range cases {
		padded := Pad(c, 8)
		if len(padded)%8 != 0 {
			t.Fatalf("Pad(%X) length %d not a multiple of 8", c, len(padded))
		}
		unpadded, err := Unpad(padded)
		if err != nil {
			t.Fatalf("Unpad(%X): %v", padded, err)
		}
		if !bytes.Equal(unpadded, c) {
			t.Fatalf("round trip mismatch: got %X, want %X", unpadded, c)
		}
	}
}

// NIST SP 800-38B AES-128 CMAC test vectors.
func TestAESCMAC(t *testing.T) {
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")

	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"empty", "", "bb1d6929e95937287fa37d129b756746"},
		{"16 bytes", "6bc1bee22e409f96e93d7e117393172a", "070a16b46b4d4144f79bdd9dd04a287c"},
		{"40 bytes", "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac54d8d1e6bc1bee22e409f96e93d7e117393172a", "dfa66747de9ae63030ca32611497c827"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, _ := hex.DecodeString(tc.msg)
			got, err := AESCMAC(key, msg)
			if err != nil {
				t.Fatalf("AESCMAC: %v", err)
			}
			want, _ := hex.DecodeString(tc.want)
			if !bytes.Equal(got, want) {
				t.Fatalf("AESCMAC(%s) = %X, want %X", tc.name, got, want)
			}
		})
	}
}

func TestKDFTruncatesAndFixesParity(t *testing.T) {
	seed := make([]byte, 16)
	out := KDF(seed, KDFEnc, TripleDES, 16)
	if len(out) != 16 {
		t.Fatalf("KDF output length = %d, want 16", len(out))
	}
	for _, b := range out {
		var ones int
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				ones++
			}
		}
		if ones%2 == 0 {
			t.Fatalf("byte 0x%02x does not have odd parity", b)
		}
	}
}

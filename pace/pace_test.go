package pace

import (
	"bytes"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"testing"

	"mrtdterm/cryptokit"
)

func TestLookupOIDKnownValues(t *testing.T) {
	info, err := LookupOID("0.4.0.127.0.7.2.2.4.2.2")
	if err != nil {
		t.Fatalf("LookupOID: %v", err)
	}
	if info.Mapping != GenericMapping || info.Agreement != ECDH || info.Cipher != CipherAES || info.KeyLenBits != 128 {
		t.Fatalf("got %+v, want GM/ECDH/AES/128", info)
	}

	if _, err := LookupOID("1.2.3"); err == nil {
		t.Fatal("expected error for unrecognized OID")
	}
}

func TestEncodeOIDDER(t *testing.T) {
	// id-PACE-ECDH-GM-AES-CBC-CMAC-128, a well-known published value whose
	// DER encoding is documented in BSI TR-03110.
	got, err := EncodeOIDDER("0.4.0.127.0.7.2.2.4.2.2")
	if err != nil {
		t.Fatalf("EncodeOIDDER: %v", err)
	}
	want, _ := hex.DecodeString("04007F00070202040202")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X, want %X", got, want)
	}
}

// TestNonceDecryptRoundTrip checks the PACE nonce step (§8 scenario 4):
// a nonce s encrypted under K_pi with a zero IV must decrypt back to s.
func TestNonceDecryptRoundTrip(t *testing.T) {
	kpi := make([]byte, 16)
	if _, err := rand.Read(kpi); err != nil {
		t.Fatal(err)
	}
	s := make([]byte, 16)
	if _, err := rand.Read(s); err != nil {
		t.Fatal(err)
	}
	enc, err := cryptokit.AESCBCEncrypt(kpi, make([]byte, 16), s)
	if err != nil {
		t.Fatalf("AESCBCEncrypt: %v", err)
	}

	algo := OIDInfo{Cipher: CipherAES}
	got, err := decryptNonce(algo, kpi, enc)
	if err != nil {
		t.Fatalf("decryptNonce: %v", err)
	}
	if !bytes.Equal(got, s) {
		t.Fatalf("decryptNonce = %X, want %X", got, s)
	}
}

// TestMapNonceECGenericProducesValidPoint checks the PACE GM-ECDH mapping
// property of §8 scenario 5: the mapped generator G' must be a valid
// point on the same curve, and distinct runs with different nonces
// produce different generators.
func TestMapNonceECGenericProducesValidPoint(t *testing.T) {
	curve := elliptic.P256()

	pcdMappingKey, err := cryptokit.GenerateECKeyPair(curve)
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	piccMappingKey, err := cryptokit.GenerateECKeyPair(curve)
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}

	s1 := big.NewInt(123456789)
	mapped1, err := MapNonceECGeneric(curve, pcdMappingKey, piccMappingKey.X, piccMappingKey.Y, s1)
	if err != nil {
		t.Fatalf("MapNonceECGeneric: %v", err)
	}
	if !curve.IsOnCurve(mapped1.Gx, mapped1.Gy) {
		t.Fatal("mapped generator is not on curve")
	}

	s2 := big.NewInt(987654321)
	mapped2, err := MapNonceECGeneric(curve, pcdMappingKey, piccMappingKey.X, piccMappingKey.Y, s2)
	if err != nil {
		t.Fatalf("MapNonceECGeneric: %v", err)
	}
	if mapped1.Gx.Cmp(mapped2.Gx) == 0 && mapped1.Gy.Cmp(mapped2.Gy) == 0 {
		t.Fatal("different nonces produced the same mapped generator")
	}

	// Both sides computing H independently (swap roles) must agree, since
	// ECDH(curve, pcdKey.D, piccKey.X, piccKey.Y) == ECDH(curve, piccKey.D, pcdKey.X, pcdKey.Y).
	hFromPCD := cryptokit.ECDH(curve, pcdMappingKey.D, piccMappingKey.X, piccMappingKey.Y)
	hFromPICC := cryptokit.ECDH(curve, piccMappingKey.D, pcdMappingKey.X, pcdMappingKey.Y)
	if !bytes.Equal(hFromPCD, hFromPICC) {
		t.Fatal("mapping shared secret is not symmetric")
	}
}

// TestCAMDecryptRoundTrip checks §8 scenario 6's CAM decrypt shape: a
// padded CA public data blob encrypted with IV = all-ones must decrypt
// and unpad back to the original bytes.
func TestCAMDecryptRoundTrip(t *testing.T) {
	kEnc := make([]byte, 16)
	if _, err := rand.Read(kEnc); err != nil {
		t.Fatal(err)
	}
	caPublicData := []byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	padded := cryptokit.Pad(caPublicData, 16)

	iv := bytes.Repeat([]byte{0xFF}, 16)
	enc, err := cryptokit.AESCBCEncrypt(kEnc, iv, padded)
	if err != nil {
		t.Fatalf("AESCBCEncrypt: %v", err)
	}

	got, err := decryptCAData(kEnc, enc)
	if err != nil {
		t.Fatalf("decryptCAData: %v", err)
	}
	if !bytes.Equal(got, caPublicData) {
		t.Fatalf("decryptCAData = %X, want %X", got, caPublicData)
	}
}

func TestEncodePublicKeyDOShape(t *testing.T) {
	point := cryptokit.EncodePoint(elliptic.P256(), big.NewInt(1), big.NewInt(2))
	do := encodePublicKeyDO("0.4.0.127.0.7.2.2.4.2.2", tagECPublicDO, point)

	if do[0] != 0x7F || do[1] != 0x49 {
		t.Fatalf("outer tag = %X %X, want 7F 49", do[0], do[1])
	}
}

package bac

import (
	"bytes"
	"encoding/hex"
	"testing"

	"mrtdterm/cryptokit"
	"mrtdterm/mrz"
)

func TestBACKeySeedAndDerivedKeys(t *testing.T) {
	key := mrz.Key{DocumentNumber: "D23145890", DateOfBirth: "340529", DateOfExpiry: "960902"}
	seed, err := key.KeySeed()
	if err != nil {
		t.Fatalf("KeySeed: %v", err)
	}

	wantSeed, _ := hex.DecodeString("239AB9CB282DAF66231DC5A4DF6BFBAE")
	if !bytes.Equal(seed, wantSeed) {
		t.Fatalf("seed = %X, want %X", seed, wantSeed)
	}

	kEnc := cryptokit.KDF(seed, cryptokit.KDFEnc, cryptokit.TripleDES, 16)
	kMac := cryptokit.KDF(seed, cryptokit.KDFMac, cryptokit.TripleDES, 16)

	wantEnc, _ := hex.DecodeString("AB94FDECF2674FDFB9B391F85D7F76F2")
	wantMac, _ := hex.DecodeString("7962D9ECE03D1ACD4C76089DCE131543")
	if !bytes.Equal(kEnc, wantEnc) {
		t.Fatalf("k_enc = %X, want %X", kEnc, wantEnc)
	}
	if !bytes.Equal(kMac, wantMac) {
		t.Fatalf("k_mac = %X, want %X", kMac, wantMac)
	}
}

func TestComputeCryptogram(t *testing.T) {
	kEnc, _ := hex.DecodeString("AB94FDECF2674FDFB9B391F85D7F76F2")
	kMac, _ := hex.DecodeString("7962D9ECE03D1ACD4C76089DCE131543")
	rndIFD, _ := hex.DecodeString("781723860C06C226")
	rndICC, _ := hex.DecodeString("4608F91988702212")
	kIFD, _ := hex.DecodeString("0B795240CB7049B01C19B33E32804F0B")

	cryptogram, err := ComputeCryptogram(kEnc, kMac, rndIFD, rndICC, kIFD)
	if err != nil {
		t.Fatalf("ComputeCryptogram: %v", err)
	}

	wantE, _ := hex.DecodeString("72C29C2371CC9BDB65B779B8E8D37B29ECC154AA56A8799FAE2F498F76ED92F2")
	wantM, _ := hex.DecodeString("5F1448EEA8AD90A7")

	gotE := cryptogram[:32]
	gotM := cryptogram[32:40]

	if !bytes.Equal(gotE, wantE) {
		t.Fatalf("E = %X, want %X", gotE, wantE)
	}
	if !bytes.Equal(gotM, wantM) {
		t.Fatalf("M = %X, want %X", gotM, wantM)
	}
}

package mrz

import (
	"encoding/hex"
	"testing"

	"mrtdterm/cryptokit"
)

func TestKeySeed(t *testing.T) {
	k := Key{
		DocumentNumber: "D23145890",
		DateOfBirth:    "340529",
		DateOfExpiry:   "960902",
	}
	seed, err := k.KeySeed()
	if err != nil {
		t.Fatalf("KeySeed: %v", err)
	}
	want, _ := hex.DecodeString("239AB9CB282DAF66231DC5A4DF6BFBAE")
	if hex.EncodeToString(seed) != hex.EncodeToString(want) {
		t.Fatalf("KeySeed = %X, want %X", seed, want)
	}
}

func TestKeySeedDerivedKeys(t *testing.T) {
	k := Key{
		DocumentNumber: "D23145890",
		DateOfBirth:    "340529",
		DateOfExpiry:   "960902",
	}
	seed, err := k.KeySeed()
	if err != nil {
		t.Fatalf("KeySeed: %v", err)
	}

	kEnc := cryptokit.KDF(seed, cryptokit.KDFEnc, cryptokit.TripleDES, 16)
	kMac := cryptokit.KDF(seed, cryptokit.KDFMac, cryptokit.TripleDES, 16)

	wantEnc, _ := hex.DecodeString("AB94FDECF2674FDFB9B391F85D7F76F2")
	wantMac, _ := hex.DecodeString("7962D9ECE03D1ACD4C76089DCE131543")

	if hex.EncodeToString(kEnc) != hex.EncodeToString(wantEnc) {
		t.Fatalf("k_enc = %X, want %X", kEnc, wantEnc)
	}
	if hex.EncodeToString(kMac) != hex.EncodeToString(wantMac) {
		t.Fatalf("k_mac = %X, want %X", kMac, wantMac)
	}
}

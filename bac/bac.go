// Package bac implements Basic Access Control mutual authentication
// (ICAO 9303-11 §4), the legacy 3DES predecessor to PACE.
package bac

import (
	"crypto/rand"
	"fmt"

	"mrtdterm/apdu"
	"mrtdterm/cryptokit"
	"mrtdterm/mrz"
	"mrtdterm/securechannel"
)

// ErrDenied is returned when the chip's mutual-authentication response
// fails to match the challenge this terminal sent; no channel is created.
type ErrDenied struct{ Reason string }

func (e *ErrDenied) Error() string { return fmt.Sprintf("bac: denied: %s", e.Reason) }

// Result is the outcome of a successful BAC run: the session keys and the
// 3DES SecureChannel they were installed into.
type Result struct {
	KEnc    []byte
	KMac    []byte
	Channel *securechannel.Channel
}

// Run executes the BAC mutual-authentication state machine over svc
// (which must not yet have a secure channel installed) using key, and
// returns the resulting session. On success svc's channel is left
// uninstalled; callers should call svc.SetChannel(result.Channel)
// themselves so the caller controls exactly when protection begins.
func Run(svc *apdu.Service, key mrz.Key) (*Result, error) {
	seed, err := key.KeySeed()
	if err != nil {
		return nil, fmt.Errorf("bac: %w", err)
	}
	kEnc := cryptokit.KDF(seed, cryptokit.KDFEnc, cryptokit.TripleDES, 16)
	kMac := cryptokit.KDF(seed, cryptokit.KDFMac, cryptokit.TripleDES, 16)

	rndICC, err := svc.GetChallenge()
	if err != nil {
		return nil, fmt.Errorf("bac: GetChallenge: %w", err)
	}

	rndIFD := make([]byte, 8)
	if _, err := rand.Read(rndIFD); err != nil {
		return nil, fmt.Errorf("bac: random rnd_ifd: %w", err)
	}
	kIFD := make([]byte, 16)
	if _, err := rand.Read(kIFD); err != nil {
		return nil, fmt.Errorf("bac: random k_ifd: %w", err)
	}

	cryptogram, err := ComputeCryptogram(kEnc, kMac, rndIFD, rndICC, kIFD)
	if err != nil {
		return nil, fmt.Errorf("bac: %w", err)
	}

	resp, err := svc.ExternalAuthenticate(cryptogram)
	if err != nil {
		return nil, fmt.Errorf("bac: ExternalAuthenticate: %w", err)
	}

	rndICCEcho, rndIFDEcho, kICC, err := VerifyAndDecrypt(kEnc, kMac, resp)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(rndICCEcho, rndICC) || !constantTimeEqual(rndIFDEcho, rndIFD) {
		return nil, &ErrDenied{Reason: "challenge/response mismatch"}
	}

	sessionSeed := cryptokit.XOR(kIFD, kICC)
	sessionEnc := cryptokit.KDF(sessionSeed, cryptokit.KDFEnc, cryptokit.TripleDES, 16)
	sessionMac := cryptokit.KDF(sessionSeed, cryptokit.KDFMac, cryptokit.TripleDES, 16)

	initialSSC := append(append([]byte{}, rndICC[4:8]...), rndIFD[4:8]...)
	channel, err := securechannel.New3DES(sessionEnc, sessionMac, initialSSC)
	if err != nil {
		return nil, fmt.Errorf("bac: %w", err)
	}

	return &Result{KEnc: sessionEnc, KMac: sessionMac, Channel: channel}, nil
}

// ComputeCryptogram builds the BAC EXTERNAL AUTHENTICATE payload:
// E = 3DES-CBC-enc(k_enc, IV=0, rnd_ifd||rnd_icc||k_ifd), M = RetailMAC(k_mac, pad(E)),
// returned as E||M (40 bytes).
func ComputeCryptogram(kEnc, kMac, rndIFD, rndICC, kIFD []byte) ([]byte, error) {
	s := append(append(append([]byte{}, rndIFD...), rndICC...), kIFD...)
	e, err := cryptokit.TripleDESCBCEncrypt(kEnc, make([]byte, 8), s)
	if err != nil {
		return nil, fmt.Errorf("encrypt challenge: %w", err)
	}
	m, err := cryptokit.RetailMAC(kMac, make([]byte, 8), cryptokit.Pad(e, 8))
	if err != nil {
		return nil, fmt.Errorf("mac challenge: %w", err)
	}
	return append(e, m...), nil
}

// VerifyAndDecrypt checks the chip's 40-byte EXTERNAL AUTHENTICATE
// response (R||M_R) against k_mac and, if the MAC verifies, decrypts R
// into rnd_icc||rnd_ifd||k_icc.
func VerifyAndDecrypt(kEnc, kMac, resp []byte) (rndICC, rndIFD, kICC []byte, err error) {
	if len(resp) != 40 {
		return nil, nil, nil, fmt.Errorf("bac: VerifyAndDecrypt: response must be 40 bytes, got %d", len(resp))
	}
	r := resp[:32]
	mR := resp[32:40]

	expectedMR, err := cryptokit.RetailMAC(kMac, make([]byte, 8), cryptokit.Pad(r, 8))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bac: mac verify: %w", err)
	}
	if !constantTimeEqual(expectedMR, mR) {
		return nil, nil, nil, &ErrDenied{Reason: "response MAC mismatch"}
	}

	plain, err := cryptokit.TripleDESCBCDecrypt(kEnc, make([]byte, 8), r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bac: decrypt response: %w", err)
	}
	return plain[0:8], plain[8:16], plain[16:32], nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

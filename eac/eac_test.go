package eac

import (
	"bytes"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"mrtdterm/apdu"
	"mrtdterm/cryptokit"
	"mrtdterm/pace"
)

// fakeTransport is an in-memory apdu.CardTransport test double that
// returns its scripted responses in order and, once they run out, answers
// every further command with 0x9000 and no data, sufficient for driving
// the MSE/GENERAL AUTHENTICATE control flow these protocols issue.
type fakeTransport struct {
	responses [][]byte
	i         int
}

func (f *fakeTransport) Open() error  { return nil }
func (f *fakeTransport) Close() error { return nil }
func (f *fakeTransport) IsOpen() bool { return true }
func (f *fakeTransport) ATR() []byte  { return nil }
func (f *fakeTransport) Transmit(cmd []byte) ([]byte, error) {
	if f.i >= len(f.responses) {
		return []byte{0x90, 0x00}, nil
	}
	resp := f.responses[f.i]
	f.i++
	return resp, nil
}

func TestRunChipAuthECDHInstallsReplacementChannel(t *testing.T) {
	curve := elliptic.P256()
	chipEph, err := cryptokit.GenerateECKeyPair(curve)
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}

	chipKey := ChipPublicKey{Agreement: pace.ECDH, Curve: curve, X: chipEph.X, Y: chipEph.Y}
	tr := &fakeTransport{}
	svc := apdu.New(tr)

	result, err := RunChipAuth(svc, chipKey, cryptokit.AES, 16)
	if err != nil {
		t.Fatalf("RunChipAuth: %v", err)
	}
	if len(result.KEnc) != 16 || len(result.KMac) != 16 {
		t.Fatalf("got KEnc=%d KMac=%d bytes, want 16/16", len(result.KEnc), len(result.KMac))
	}
	if result.Channel == nil {
		t.Fatal("expected a channel to be installed")
	}
	if !bytes.Equal(result.Channel.SSC, securechannelZeroSSC(16)) {
		t.Fatalf("new channel SSC = %X, want zero", result.Channel.SSC)
	}
	if len(result.PCDPubHash) != 32 {
		t.Fatalf("PCDPubHash length = %d, want 32 (SHA-256 for AES)", len(result.PCDPubHash))
	}
}

func securechannelZeroSSC(n int) []byte { return make([]byte, n) }

type fakeSigner struct{ sig []byte }

func (f *fakeSigner) Sign(challenge []byte) ([]byte, error) { return f.sig, nil }

type fakeVerifier struct{ called bool }

func (f *fakeVerifier) VerifyChain(chain [][]byte, cvcaRef []byte) error {
	f.called = true
	return nil
}

func TestRunTerminalAuthHappyPath(t *testing.T) {
	rndICC := make([]byte, 8)
	rand.Read(rndICC)

	tr := &fakeTransport{responses: [][]byte{
		{0x90, 0x00}, // MSE Set DST
		{0x90, 0x00}, // PSO Verify Certificate
		{0x90, 0x00}, // MSE Set AT External Auth
		append(append([]byte{}, rndICC...), 0x90, 0x00), // GET CHALLENGE
		{0x90, 0x00}, // EXTERNAL AUTHENTICATE
	}}
	svc := apdu.New(tr)

	verifier := &fakeVerifier{}
	signer := &fakeSigner{sig: bytes.Repeat([]byte{0xAB}, 64)}

	err := RunTerminalAuth(svc, TerminalAuthParams{
		CertChain:    [][]byte{{0x7F, 0x21, 0x01, 0x00}},
		CVCARef:      []byte{0x01, 0x02},
		IDPICC:       []byte{0x01, 0x02, 0x03},
		EphPKPCDHash: bytes.Repeat([]byte{0xCC}, 32),
		Signer:       signer,
		Verifier:     verifier,
	})
	if err != nil {
		t.Fatalf("RunTerminalAuth: %v", err)
	}
	if !verifier.called {
		t.Fatal("expected certificate verifier to be invoked")
	}
}

func TestRunTerminalAuthRequiresSigner(t *testing.T) {
	tr := &fakeTransport{responses: [][]byte{
		{0x90, 0x00},
		{0x90, 0x00},
		{0x90, 0x00},
		append(bytes.Repeat([]byte{0x01}, 8), 0x90, 0x00),
	}}
	svc := apdu.New(tr)

	err := RunTerminalAuth(svc, TerminalAuthParams{CVCARef: []byte{0x01}})
	if _, ok := err.(*ErrTerminalAuthFailed); !ok {
		t.Fatalf("got %v, want ErrTerminalAuthFailed", err)
	}
}

package eac

import (
	"fmt"

	"mrtdterm/apdu"
)

// CertVerifier validates a Card Verifiable certificate chain up to a
// trusted CVCA root, returning a non-nil error if the chain does not
// verify. Certificate-chain cryptographic validation is
// explicitly out of this package's scope; callers supply a verifier
// backed by their own PKI trust store.
type CertVerifier interface {
	VerifyChain(chain [][]byte, cvcaRef []byte) error
}

// Signer produces the Terminal Authentication signature over the
// challenge this package assembles. The terminal's private key material
// (smartcard, HSM, software keystore) is a deployment concern external to
// this package.
type Signer interface {
	Sign(challenge []byte) ([]byte, error)
}

// TerminalAuthParams bundles the inputs Terminal Authentication needs
// beyond the live APDU session: the certificate chain to present (leaf
// last), the CVCA reference to announce via MSE Set DST, the chip's
// identifier and Chip-Authentication ephemeral-key hash from the
// preceding Chip Authentication run, and the signer to use.
type TerminalAuthParams struct {
	CertChain [][]byte
	CVCARef   []byte
	IDPICC    []byte
	EphPKPCDHash []byte
	Signer    Signer
	Verifier  CertVerifier
}

// RunTerminalAuth executes Terminal Authentication (§4.8): announce the
// trust anchor, transmit and verify the certificate chain, announce the
// external-authentication key reference, fetch the chip's challenge, sign
// id_picc||rnd_icc||H(eph_pk_pcd), and authenticate.
func RunTerminalAuth(svc *apdu.Service, p TerminalAuthParams) error {
	if p.Verifier != nil {
		if err := p.Verifier.VerifyChain(p.CertChain, p.CVCARef); err != nil {
			return &ErrTerminalAuthFailed{Reason: fmt.Sprintf("certificate chain: %v", err)}
		}
	}

	if err := svc.MSESetDST(p.CVCARef); err != nil {
		return &ErrTerminalAuthFailed{Reason: "MSE Set DST", SW: swOf(err)}
	}

	for _, cert := range p.CertChain {
		if err := svc.PSOVerifyCertificate(cert); err != nil {
			return &ErrTerminalAuthFailed{Reason: "PSO Verify Certificate", SW: swOf(err)}
		}
	}

	if err := svc.MSESetATExternalAuth(p.CVCARef); err != nil {
		return &ErrTerminalAuthFailed{Reason: "MSE Set AT External Authenticate", SW: swOf(err)}
	}

	rndICC, err := svc.GetChallenge()
	if err != nil {
		return &ErrTerminalAuthFailed{Reason: fmt.Sprintf("GET CHALLENGE: %v", err)}
	}

	challenge := append(append(append([]byte{}, p.IDPICC...), rndICC...), p.EphPKPCDHash...)
	if p.Signer == nil {
		return &ErrTerminalAuthFailed{Reason: "no Signer configured"}
	}
	signature, err := p.Signer.Sign(challenge)
	if err != nil {
		return &ErrTerminalAuthFailed{Reason: fmt.Sprintf("sign challenge: %v", err)}
	}

	if err := svc.ExternalAuthenticateTA(signature); err != nil {
		return &ErrTerminalAuthFailed{Reason: fmt.Sprintf("EXTERNAL AUTHENTICATE: %v", err)}
	}
	return nil
}

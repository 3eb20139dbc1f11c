package apdu

import "fmt"

// SecureChannel is the subset of securechannel.Channel this package
// consumes: wrap a plain command under the session, unwrap its protected
// response. A nil SecureChannel means "send in the clear."
type SecureChannel interface {
	Wrap(cmd CommandAPDU) (CommandAPDU, error)
	Unwrap(resp ResponseAPDU) (ResponseAPDU, error)
}

// Service issues semantic ICAO commands over a CardTransport, optionally
// through a SecureChannel. Not reentrant: the caller must serialize access
// to a single Service the way it must serialize access to the underlying
// transport (§5).
type Service struct {
	Transport CardTransport
	Channel   SecureChannel // nil sends commands in the clear
}

// New returns a Service over transport with no secure channel installed.
func New(transport CardTransport) *Service {
	return &Service{Transport: transport}
}

// SetChannel installs (or clears, with nil) the secure channel commands
// are wrapped under.
func (s *Service) SetChannel(ch SecureChannel) {
	s.Channel = ch
}

// send transmits cmd, wrapping it under the installed channel if any, and
// returns the unwrapped response.
func (s *Service) send(op string, cmd CommandAPDU) (ResponseAPDU, error) {
	toSend := cmd
	if s.Channel != nil {
		wrapped, err := s.Channel.Wrap(cmd)
		if err != nil {
			return ResponseAPDU{}, fmt.Errorf("apdu: %s: wrap: %w", op, err)
		}
		toSend = wrapped
	}

	raw, err := toSend.Bytes()
	if err != nil {
		return ResponseAPDU{}, fmt.Errorf("apdu: %s: encode: %w", op, err)
	}

	respRaw, err := s.Transport.Transmit(raw)
	if err != nil {
		return ResponseAPDU{}, &TransportError{Op: op, Err: err}
	}

	resp, err := ParseResponse(respRaw)
	if err != nil {
		return ResponseAPDU{}, err
	}

	if s.Channel != nil {
		resp, err = s.Channel.Unwrap(resp)
		if err != nil {
			return ResponseAPDU{}, fmt.Errorf("apdu: %s: unwrap: %w", op, err)
		}
	}
	return resp, nil
}

// SelectApplet issues SELECT by AID (P1=0x04, P2=0x0C) and requires SW 0x9000.
func (s *Service) SelectApplet(aid []byte) error {
	resp, err := s.send("SelectApplet", CommandAPDU{
		CLA: 0x00, INS: 0xA4, P1: 0x04, P2: 0x0C,
		Data: aid, WantsResponse: true, Ne: 256,
	})
	if err != nil {
		return err
	}
	if resp.SW != SWNoError {
		return &Error{Op: "SelectApplet", SW: resp.SW}
	}
	return nil
}

// SelectFile issues SELECT by file identifier (P1=0x02, P2=0x0C, Le=0) and
// maps recognized error SWs to domain errors.
func (s *Service) SelectFile(fid uint16) error {
	resp, err := s.send("SelectFile", CommandAPDU{
		CLA: 0x00, INS: 0xA4, P1: 0x02, P2: 0x0C,
		Data:          []byte{byte(fid >> 8), byte(fid)},
		WantsResponse: true, Ne: 0,
	})
	if err != nil {
		return err
	}
	switch resp.SW {
	case SWNoError:
		return nil
	case SWFileNotFound:
		return &ErrFileNotFound{FileID: fid}
	case SWSecurityStatusNotSatisfied, SWConditionsNotSatisfied, SWCommandNotAllowed:
		return &ErrAccessDenied{Op: "SelectFile", SW: resp.SW}
	default:
		return &Error{Op: "SelectFile", SW: resp.SW}
	}
}

// ReadBinary reads up to 256 bytes at offset using the short-form command.
// If sfi is non-zero, the offset is encoded relative to that short file
// identifier instead of the currently selected file.
func (s *Service) ReadBinary(offset int, le int, sfi byte) ([]byte, error) {
	if offset > 0x7FFF {
		return nil, fmt.Errorf("apdu: ReadBinary: offset %d exceeds short-form range", offset)
	}
	p1 := byte(offset >> 8)
	p2 := byte(offset)
	if sfi != 0 {
		p1 = 0x80 | sfi
	}
	resp, err := s.send("ReadBinary", CommandAPDU{
		CLA: 0x00, INS: 0xB0, P1: p1, P2: p2,
		WantsResponse: true, Ne: le,
	})
	if err != nil {
		return nil, err
	}
	if resp.SW != SWNoError {
		return nil, &Error{Op: "ReadBinary", SW: resp.SW}
	}
	return resp.Data, nil
}

// ReadBinaryExtended reads at an offset beyond the short-form range using
// the odd-INS (0xB1) form with a DO '54' offset object. le' is adjusted
// per §4.5 to request the TLV overhead back from the chip; the caller
// must unwrap the returned '53' DO itself.
func (s *Service) ReadBinaryExtended(offset int, le int) ([]byte, error) {
	leAdjusted := le
	switch {
	case le < 128:
		leAdjusted = le + 2
	case le < 256:
		leAdjusted = le + 3
	}
	if leAdjusted > 256 {
		leAdjusted = 256
	}

	data := []byte{0x54, 0x02, byte(offset >> 8), byte(offset)}
	resp, err := s.send("ReadBinaryExtended", CommandAPDU{
		CLA: 0x00, INS: 0xB1, P1: 0x00, P2: 0x00,
		Data: data, WantsResponse: true, Ne: leAdjusted,
	})
	if err != nil {
		return nil, err
	}
	if resp.SW != SWNoError {
		return nil, &Error{Op: "ReadBinaryExtended", SW: resp.SW}
	}
	return resp.Data, nil
}

// GetChallenge requests 8 bytes of chip randomness.
func (s *Service) GetChallenge() ([]byte, error) {
	resp, err := s.send("GetChallenge", CommandAPDU{
		CLA: 0x00, INS: 0x84, P1: 0x00, P2: 0x00,
		WantsResponse: true, Ne: 8,
	})
	if err != nil {
		return nil, err
	}
	if resp.SW != SWNoError {
		return nil, &Error{Op: "GetChallenge", SW: resp.SW}
	}
	return resp.Data, nil
}

// InternalAuthenticate issues Active Authentication's INTERNAL AUTHENTICATE.
func (s *Service) InternalAuthenticate(rndIFD []byte) ([]byte, error) {
	resp, err := s.send("InternalAuthenticate", CommandAPDU{
		CLA: 0x00, INS: 0x88, P1: 0x00, P2: 0x00,
		Data: rndIFD, WantsResponse: true, Ne: 256,
	})
	if err != nil {
		return nil, err
	}
	if resp.SW != SWNoError {
		return nil, &Error{Op: "InternalAuthenticate", SW: resp.SW}
	}
	return resp.Data, nil
}

// ExternalAuthenticate sends the BAC mutual-authentication cryptogram.
// Le is first attempted as 0x28 (40 bytes); on a non-success SW it retries
// once with Le=0 (max 256), per the one legitimate local retry named in
// §7. Returns the raw 40-byte cryptogram+MAC response.
func (s *Service) ExternalAuthenticate(cryptogramAndMAC []byte) ([]byte, error) {
	resp, err := s.send("ExternalAuthenticate", CommandAPDU{
		CLA: 0x00, INS: 0x82, P1: 0x00, P2: 0x00,
		Data: cryptogramAndMAC, WantsResponse: true, Ne: 0x28,
	})
	if err != nil {
		return nil, err
	}
	if resp.SW != SWNoError {
		resp, err = s.send("ExternalAuthenticate", CommandAPDU{
			CLA: 0x00, INS: 0x82, P1: 0x00, P2: 0x00,
			Data: cryptogramAndMAC, WantsResponse: true, Ne: 0,
		})
		if err != nil {
			return nil, err
		}
		if resp.SW != SWNoError {
			return nil, &Error{Op: "ExternalAuthenticate", SW: resp.SW}
		}
	}
	if len(resp.Data) != 40 {
		return nil, &ErrMalformedResponse{Op: "ExternalAuthenticate", Reason: fmt.Sprintf("expected 40 bytes, got %d", len(resp.Data))}
	}
	return resp.Data, nil
}

// ExternalAuthenticateTA sends Terminal Authentication's EXTERNAL
// AUTHENTICATE (the terminal's signature over the chip's challenge),
// which unlike BAC's EXTERNAL AUTHENTICATE carries no response data on
// success.
func (s *Service) ExternalAuthenticateTA(signature []byte) error {
	resp, err := s.send("ExternalAuthenticateTA", CommandAPDU{
		CLA: 0x00, INS: 0x82, P1: 0x00, P2: 0x00,
		Data: signature,
	})
	if err != nil {
		return err
	}
	if resp.SW != SWNoError {
		return &Error{Op: "ExternalAuthenticateTA", SW: resp.SW}
	}
	return nil
}

// MSESetDST issues MSE Set DST (Digital Signature Template), used to
// announce the trust anchor for Terminal Authentication certificate
// verification.
func (s *Service) MSESetDST(data []byte) error {
	return s.mseNoResponse("MSESetDST", 0x81, 0xB6, data)
}

// MSESetATExternalAuth issues MSE Set AT for EAC-TA's external
// authentication step.
func (s *Service) MSESetATExternalAuth(data []byte) error {
	return s.mseNoResponse("MSESetATExternalAuth", 0x81, 0xA4, data)
}

// MSESetATInternalAuthCA issues MSE Set AT for Chip Authentication.
func (s *Service) MSESetATInternalAuthCA(data []byte) error {
	return s.mseNoResponse("MSESetATInternalAuthCA", 0x41, 0xA4, data)
}

// MSESetATMutualAuthPACE issues MSE Set AT for PACE's mutual
// authentication setup (OID, password reference, optional chip public
// key reference for CAM).
func (s *Service) MSESetATMutualAuthPACE(data []byte) error {
	return s.mseNoResponse("MSESetATMutualAuthPACE", 0xC1, 0xA4, data)
}

// MSEKAT issues MSE Key Agreement Template, installing the negotiated
// session key reference.
func (s *Service) MSEKAT(data []byte) error {
	return s.mseNoResponse("MSEKAT", 0x41, 0xA6, data)
}

func (s *Service) mseNoResponse(op string, p1, p2 byte, data []byte) error {
	resp, err := s.send(op, CommandAPDU{
		CLA: 0x00, INS: 0x22, P1: p1, P2: p2,
		Data: data,
	})
	if err != nil {
		return err
	}
	if resp.SW != SWNoError {
		return &Error{Op: op, SW: resp.SW}
	}
	return nil
}

// GeneralAuthenticate issues one step of a chained GENERAL AUTHENTICATE
// exchange (PACE and Chip Authentication). envelope is the already
// '7C'-wrapped dynamic authentication data; the caller supplies the '7C'
// wrapper (this method does not add one). last controls whether the
// command chaining bit is cleared (final step) or set (more steps follow).
func (s *Service) GeneralAuthenticate(envelope []byte, last bool) ([]byte, error) {
	cla := byte(0x10)
	if last {
		cla = 0x00
	}
	resp, err := s.send("GeneralAuthenticate", CommandAPDU{
		CLA: cla, INS: 0x86, P1: 0x00, P2: 0x00,
		Data: envelope, WantsResponse: true, Ne: 256,
	})
	if err != nil {
		return nil, err
	}
	if resp.SW != SWNoError {
		return nil, &Error{Op: "GeneralAuthenticate", SW: resp.SW}
	}
	return resp.Data, nil
}

// PSOVerifyCertificateBlockSize is the maximum certificate-chunk size used
// by PSOVerifyCertificate's block-chain mode.
const PSOVerifyCertificateBlockSize = 223

// PSOVerifyCertificate transmits a certificate for PSO: Verify Certificate
// in block-chain mode: all but the last block use chaining CLA 0x10, the
// last block uses 0x00.
func (s *Service) PSOVerifyCertificate(cert []byte) error {
	for offset := 0; offset < len(cert); offset += PSOVerifyCertificateBlockSize {
		end := offset + PSOVerifyCertificateBlockSize
		last := end >= len(cert)
		if last {
			end = len(cert)
		}
		cla := byte(0x10)
		if last {
			cla = 0x00
		}
		resp, err := s.send("PSOVerifyCertificate", CommandAPDU{
			CLA: cla, INS: 0x2A, P1: 0x00, P2: 0xBE,
			Data: cert[offset:end],
		})
		if err != nil {
			return err
		}
		if resp.SW != SWNoError {
			return &Error{Op: "PSOVerifyCertificate", SW: resp.SW}
		}
	}
	return nil
}

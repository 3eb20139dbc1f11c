package session

import (
	"fmt"

	"mrtdterm/apdu"
	"mrtdterm/bac"
	"mrtdterm/cryptokit"
	"mrtdterm/lds"
	"mrtdterm/pace"
	"mrtdterm/securechannel"
)

// Result is the outcome of a full read session: the files read back,
// keyed by the name under which they were requested ("EF.COM", "EF.SOD",
// "DG1", ...), and a description of the protocol that was used. Each
// file's entry holds the bytes of a single READ BINARY at offset 0 (at
// most 256 bytes); the rest of a longer file is not read.
type Result struct {
	Protocol string // "BAC" or "PACE"
	PaceOID  string
	Cipher   string
	Files    map[string][]byte
}

// defaultPaceDomainParam is used when a Config names a PACE OID but no
// domain parameter negotiation has happened (a full implementation reads
// this from EF.CardAccess's SecurityInfos; this package assumes the
// common NIST P-256 ECDH case when the caller hasn't parsed that file).
const defaultPaceDomainParam = pace.DP_ECP256r1

// Run drives a full read session over transport using cfg: select the
// applet, authenticate (PACE if cfg names an OID, BAC otherwise), then
// read EF.COM, EF.SOD, and every data group cfg names.
func Run(transport apdu.CardTransport, cfg Config) (*Result, error) {
	svc := apdu.New(transport)

	if err := svc.SelectApplet(lds.AID); err != nil {
		return nil, fmt.Errorf("session: select applet: %w", err)
	}

	result := &Result{Files: make(map[string][]byte)}

	var channel securechannelLike
	if cfg.PreferredPaceOID != "" {
		ch, cipher, err := runPACE(svc, cfg)
		if err != nil {
			return nil, err
		}
		channel = ch
		result.Protocol = "PACE"
		result.PaceOID = cfg.PreferredPaceOID
		result.Cipher = cipher
	} else {
		res, err := bac.Run(svc, cfg.MRZ)
		if err != nil {
			return nil, fmt.Errorf("session: BAC: %w", err)
		}
		channel = res.Channel
		result.Protocol = "BAC"
		result.Cipher = "3DES"
	}
	svc.SetChannel(channel)

	if err := readFile(svc, result.Files, "EF.COM", lds.EFCOM); err != nil {
		return nil, err
	}
	if err := readFile(svc, result.Files, "EF.SOD", lds.EFSOD); err != nil {
		return nil, err
	}
	for _, n := range cfg.DataGroups {
		fid, ok := lds.DGFileID(n)
		if !ok {
			return nil, fmt.Errorf("session: invalid data group number %d", n)
		}
		if err := readFile(svc, result.Files, fmt.Sprintf("DG%d", n), fid); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// securechannelLike is the subset of *securechannel.Channel that
// apdu.Service consumes; both BAC's and PACE's results satisfy it
// directly since both return *securechannel.Channel.
type securechannelLike = apdu.SecureChannel

func runPACE(svc *apdu.Service, cfg Config) (*securechannel.Channel, string, error) {
	info, err := pace.LookupOID(cfg.PreferredPaceOID)
	if err != nil {
		return nil, "", fmt.Errorf("session: %w", err)
	}

	var kpi []byte
	switch cfg.PasswordSource {
	case PasswordCAN:
		kpi = kdfPassword([]byte(cfg.CAN), info)
	case PasswordPIN:
		kpi = kdfPassword([]byte(cfg.PIN), info)
	default:
		seed, err := cfg.MRZ.KeySeed()
		if err != nil {
			return nil, "", fmt.Errorf("session: MRZ key seed: %w", err)
		}
		kpi = kdfPassword(seed, info)
	}

	result, err := pace.Run(svc, pace.Params{
		OID:           cfg.PreferredPaceOID,
		DomainParamID: defaultPaceDomainParam,
		KeyRef:        cfg.KeyRef(),
		Kpi:           kpi,
	}, nil)
	if err != nil {
		return nil, "", fmt.Errorf("session: PACE: %w", err)
	}

	cipherName := "3DES"
	if info.Cipher == pace.CipherAES {
		cipherName = fmt.Sprintf("AES-%d", info.KeyLenBits)
	}
	return result.Channel, cipherName, nil
}

func kdfPassword(seed []byte, info pace.OIDInfo) []byte {
	if info.Cipher == pace.CipherAES {
		return cryptokit.KDF(seed, cryptokit.KDFPace, cryptokit.AES, info.KeyLenBits/8)
	}
	return cryptokit.KDF(seed, cryptokit.KDFPace, cryptokit.TripleDES, 16)
}

func readFile(svc *apdu.Service, out map[string][]byte, name string, fid uint16) error {
	if err := svc.SelectFile(fid); err != nil {
		return fmt.Errorf("session: select %s: %w", name, err)
	}
	data, err := svc.ReadBinary(0, 256, 0)
	if err != nil {
		return fmt.Errorf("session: read %s: %w", name, err)
	}
	out[name] = data
	return nil
}

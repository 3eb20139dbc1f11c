// Package eac implements Extended Access Control's Chip Authentication and
// Terminal Authentication protocols (ICAO 9303-11 §6).
package eac

import (
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"math/big"

	"mrtdterm/apdu"
	"mrtdterm/cryptokit"
	"mrtdterm/pace"
	"mrtdterm/securechannel"
	"mrtdterm/tlv"
)

// ChipPublicKey is the chip's static Chip Authentication public key, as
// published in DG14/EF.CardSecurity: either an EC point or a DH integer,
// depending on Agreement.
type ChipPublicKey struct {
	Agreement pace.Agreement
	Curve     elliptic.Curve  // set when Agreement == ECDH
	X, Y      *big.Int        // EC point, set when Agreement == ECDH
	DHParams  *cryptokit.DHParams // set when Agreement == DH
	DHPublic  *big.Int        // set when Agreement == DH
	KeyID     []byte          // optional key identifier for MSE-KAT's 0x84, nil if none published
}

// ChipAuthResult is the outcome of a successful Chip Authentication run.
type ChipAuthResult struct {
	KEnc        []byte
	KMac        []byte
	Channel     *securechannel.Channel
	PCDPubHash  []byte // hash of the PCD ephemeral public key, for Passive Authentication cross-check
}

// RunChipAuth executes Chip Authentication (§4.8): the terminal generates
// an ephemeral keypair matching the chip's static agreement type, agrees a
// shared secret with the chip's static public key, derives new session
// keys, and installs a replacement secure channel with SSC=0.
func RunChipAuth(svc *apdu.Service, chipKey ChipPublicKey, cipherAlg cryptokit.CipherAlg, keyLenBytes int) (*ChipAuthResult, error) {
	switch chipKey.Agreement {
	case pace.ECDH:
		return runChipAuthECDH(svc, chipKey, cipherAlg, keyLenBytes)
	case pace.DH:
		return runChipAuthDH(svc, chipKey, cipherAlg, keyLenBytes)
	default:
		return nil, &ErrChipAuthFailed{Reason: "unknown agreement type"}
	}
}

func runChipAuthECDH(svc *apdu.Service, chipKey ChipPublicKey, cipherAlg cryptokit.CipherAlg, keyLenBytes int) (*ChipAuthResult, error) {
	eph, err := cryptokit.GenerateECKeyPair(chipKey.Curve)
	if err != nil {
		return nil, &ErrChipAuthFailed{Reason: fmt.Sprintf("generate ephemeral keypair: %v", err)}
	}
	pcdPub := cryptokit.EncodePoint(chipKey.Curve, eph.X, eph.Y)

	setAT := tlv.Wrap(0x80, nil) // algorithm OID placeholder is caller-negotiated out of band; 0x84 carries the key reference when present
	if len(chipKey.KeyID) > 0 {
		setAT = append(setAT, tlv.Wrap(0x84, chipKey.KeyID)...)
	}
	if err := svc.MSESetATInternalAuthCA(setAT); err != nil {
		return nil, &ErrChipAuthFailed{Reason: "MSE Set AT", SW: swOf(err)}
	}

	if err := svc.MSEKAT(tlv.Wrap(0x91, pcdPub)); err != nil {
		return nil, &ErrChipAuthFailed{Reason: "MSE KAT", SW: swOf(err)}
	}

	shared := cryptokit.ECDH(chipKey.Curve, eph.D, chipKey.X, chipKey.Y)
	kEnc, kMac := deriveSessionKeys(cipherAlg, keyLenBytes, shared)

	channel, err := installReplacementChannel(cipherAlg, kEnc, kMac)
	if err != nil {
		return nil, &ErrChipAuthFailed{Reason: err.Error()}
	}

	return &ChipAuthResult{
		KEnc: kEnc, KMac: kMac, Channel: channel,
		PCDPubHash: hashPCDPub(cipherAlg, pcdPub),
	}, nil
}

func runChipAuthDH(svc *apdu.Service, chipKey ChipPublicKey, cipherAlg cryptokit.CipherAlg, keyLenBytes int) (*ChipAuthResult, error) {
	eph, err := cryptokit.GenerateDHKeyPair(chipKey.DHParams)
	if err != nil {
		return nil, &ErrChipAuthFailed{Reason: fmt.Sprintf("generate ephemeral keypair: %v", err)}
	}
	pcdPub := cryptokit.DHEncodePublic(chipKey.DHParams, eph.Pub)

	setAT := tlv.Wrap(0x80, nil)
	if len(chipKey.KeyID) > 0 {
		setAT = append(setAT, tlv.Wrap(0x84, chipKey.KeyID)...)
	}
	if err := svc.MSESetATInternalAuthCA(setAT); err != nil {
		return nil, &ErrChipAuthFailed{Reason: "MSE Set AT", SW: swOf(err)}
	}
	if err := svc.MSEKAT(tlv.Wrap(0x91, pcdPub)); err != nil {
		return nil, &ErrChipAuthFailed{Reason: "MSE KAT", SW: swOf(err)}
	}

	shared := cryptokit.DH(chipKey.DHParams, eph.X, chipKey.DHPublic)
	kEnc, kMac := deriveSessionKeys(cipherAlg, keyLenBytes, shared)

	channel, err := installReplacementChannel(cipherAlg, kEnc, kMac)
	if err != nil {
		return nil, &ErrChipAuthFailed{Reason: err.Error()}
	}

	return &ChipAuthResult{
		KEnc: kEnc, KMac: kMac, Channel: channel,
		PCDPubHash: hashPCDPub(cipherAlg, pcdPub),
	}, nil
}

func deriveSessionKeys(cipherAlg cryptokit.CipherAlg, keyLenBytes int, shared []byte) (kEnc, kMac []byte) {
	if cipherAlg == cryptokit.AES {
		return cryptokit.KDF(shared, cryptokit.KDFEnc, cryptokit.AES, keyLenBytes),
			cryptokit.KDF(shared, cryptokit.KDFMac, cryptokit.AES, keyLenBytes)
	}
	return cryptokit.KDF(shared, cryptokit.KDFEnc, cryptokit.TripleDES, 16),
		cryptokit.KDF(shared, cryptokit.KDFMac, cryptokit.TripleDES, 16)
}

func installReplacementChannel(cipherAlg cryptokit.CipherAlg, kEnc, kMac []byte) (*securechannel.Channel, error) {
	if cipherAlg == cryptokit.TripleDES {
		return securechannel.New3DES(kEnc, kMac, securechannel.ZeroSSC(cryptokit.TripleDES))
	}
	return securechannel.NewAES(kEnc, kMac, securechannel.ZeroSSC(cryptokit.AES))
}

// hashPCDPub hashes the PCD ephemeral public key with the digest matching
// the negotiated cipher (SHA-1 for 3DES, SHA-256 for AES), for the
// Passive Authentication cross-check against DG15/Security Object data.
func hashPCDPub(cipherAlg cryptokit.CipherAlg, pub []byte) []byte {
	if cipherAlg == cryptokit.AES {
		sum := sha256.Sum256(pub)
		return sum[:]
	}
	sum := sha1.Sum(pub)
	return sum[:]
}

func swOf(err error) uint16 {
	if swErr, ok := err.(*apdu.Error); ok {
		return swErr.SW
	}
	return 0
}

// Package securechannel wraps and unwraps command/response APDUs under a
// BAC or PACE session key, maintaining the send-sequence counter (SSC)
// and ISO 9797-1 retail-MAC / AES-CMAC integrity checks described in
// ICAO 9303-11 §9.8.
package securechannel

import (
	"fmt"

	"mrtdterm/apdu"
	"mrtdterm/cryptokit"
	"mrtdterm/tlv"
)

// Tags used in secure-messaging data objects.
const (
	tagData87 uint32 = 0x87
	tagData85 uint32 = 0x85
	tagLe97   uint32 = 0x97
	tagSW99   uint32 = 0x99
	tagMAC8E  uint32 = 0x8E
)

// Channel is the re-architected tagged variant named in §9: a single
// type whose Cipher field selects the 3DES or AES behavior, rather than
// two parallel wrapper classes. A zero-value Channel is not usable;
// construct with New3DES or NewAES.
type Channel struct {
	KEnc      []byte
	KMac      []byte
	SSC       []byte // big-endian counter, width == BlockSize
	Cipher    cryptokit.CipherAlg
	BlockSize int // 8 for 3DES, 16 for AES
}

// New3DES constructs a 3DES secure channel (BAC's result, or PACE with a
// 3DES-OID). initialSSC must be 8 bytes.
func New3DES(kEnc, kMac, initialSSC []byte) (*Channel, error) {
	if len(initialSSC) != 8 {
		return nil, fmt.Errorf("securechannel: New3DES: initial SSC must be 8 bytes")
	}
	ssc := make([]byte, 8)
	copy(ssc, initialSSC)
	return &Channel{KEnc: kEnc, KMac: kMac, SSC: ssc, Cipher: cryptokit.TripleDES, BlockSize: 8}, nil
}

// NewAES constructs an AES secure channel (PACE with an AES-OID).
// initialSSC must be 16 bytes; per the carryover rule documented in §9,
// callers re-running PACE over an AES channel pass the prior channel's
// SSC here instead of a fresh zero value.
func NewAES(kEnc, kMac []byte, initialSSC []byte) (*Channel, error) {
	if len(initialSSC) != 16 {
		return nil, fmt.Errorf("securechannel: NewAES: initial SSC must be 16 bytes")
	}
	ssc := make([]byte, 16)
	copy(ssc, initialSSC)
	return &Channel{KEnc: kEnc, KMac: kMac, SSC: ssc, Cipher: cryptokit.AES, BlockSize: 16}, nil
}

// ZeroSSC returns a zero counter of the appropriate width for cipher.
func ZeroSSC(cipher cryptokit.CipherAlg) []byte {
	if cipher == cryptokit.AES {
		return make([]byte, 16)
	}
	return make([]byte, 8)
}

// incrementSSC increments the counter in place, treating it as a single
// big-endian integer of width BlockSize.
func (c *Channel) incrementSSC() {
	for i := len(c.SSC) - 1; i >= 0; i-- {
		c.SSC[i]++
		if c.SSC[i] != 0 {
			return
		}
	}
}

func (c *Channel) encrypt(iv, data []byte) ([]byte, error) {
	if c.Cipher == cryptokit.AES {
		return cryptokit.AESCBCEncrypt(c.KEnc, iv, data)
	}
	return cryptokit.TripleDESCBCEncrypt(c.KEnc, iv, data)
}

func (c *Channel) decrypt(iv, data []byte) ([]byte, error) {
	if c.Cipher == cryptokit.AES {
		return cryptokit.AESCBCDecrypt(c.KEnc, iv, data)
	}
	return cryptokit.TripleDESCBCDecrypt(c.KEnc, iv, data)
}

// dataIV returns the CBC IV used for the encrypted-data DO: zero for
// 3DES, E(k_enc, SSC) for AES (§4.4 step 3).
func (c *Channel) dataIV() ([]byte, error) {
	if c.Cipher == cryptokit.AES {
		return cryptokit.AESECBEncrypt(c.KEnc, c.SSC)
	}
	return make([]byte, 8), nil
}

func (c *Channel) mac(data []byte) ([]byte, error) {
	if c.Cipher == cryptokit.AES {
		full, err := cryptokit.AESCMAC(c.KMac, data)
		if err != nil {
			return nil, err
		}
		return cryptokit.TruncMAC8(full), nil
	}
	return cryptokit.RetailMAC(c.KMac, make([]byte, 8), data)
}

// Wrap implements §4.4's wrap algorithm: increment SSC, encrypt the
// command data (if present) into a '87' DO, encode Le as a '97' DO,
// compute the MAC over SSC||header||DOs into an '8E' DO, and assemble the
// protected command.
func (c *Channel) Wrap(cmd apdu.CommandAPDU) (apdu.CommandAPDU, error) {
	c.incrementSSC()

	header := []byte{cmd.CLA | apdu.CLASecureMessage, cmd.INS, cmd.P1, cmd.P2}
	paddedHeader := cryptokit.Pad(header, c.BlockSize)

	var do87, do97 []byte
	if len(cmd.Data) > 0 {
		iv, err := c.dataIV()
		if err != nil {
			return apdu.CommandAPDU{}, fmt.Errorf("securechannel: Wrap: %w", err)
		}
		padded := cryptokit.Pad(cmd.Data, c.BlockSize)
		ciphertext, err := c.encrypt(iv, padded)
		if err != nil {
			return apdu.CommandAPDU{}, fmt.Errorf("securechannel: Wrap: %w", err)
		}
		value := append([]byte{0x01}, ciphertext...)
		do87 = tlv.Wrap(tagData87, value)
	}
	if cmd.WantsResponse {
		var leBytes []byte
		switch {
		case cmd.Ne == 0, cmd.Ne > 256:
			leBytes = []byte{0x00}
		case cmd.Ne <= 256:
			leBytes = []byte{byte(cmd.Ne)}
		}
		do97 = tlv.Wrap(tagLe97, leBytes)
	}

	var macInput []byte
	macInput = append(macInput, c.SSC...)
	macInput = append(macInput, paddedHeader...)
	macInput = append(macInput, do87...)
	macInput = append(macInput, do97...)
	macInput = cryptokit.Pad(macInput, c.BlockSize)

	macValue, err := c.mac(macInput)
	if err != nil {
		return apdu.CommandAPDU{}, fmt.Errorf("securechannel: Wrap: %w", err)
	}
	do8E := tlv.Wrap(tagMAC8E, macValue)

	var data []byte
	data = append(data, do87...)
	data = append(data, do97...)
	data = append(data, do8E...)

	ne := 256
	if c.cardSupportsExtended(cmd) {
		ne = 65536
	}

	return apdu.CommandAPDU{
		CLA: cmd.CLA | apdu.CLASecureMessage, INS: cmd.INS, P1: cmd.P1, P2: cmd.P2,
		Data: data, WantsResponse: true, Ne: ne, Extended: cmd.Extended,
	}, nil
}

func (c *Channel) cardSupportsExtended(cmd apdu.CommandAPDU) bool {
	return cmd.Extended
}

// Unwrap implements §4.4's unwrap algorithm: increment SSC, parse the
// data objects, verify the MAC over SSC||DO87?||DO99?, decrypt the data
// object and return plaintext data plus the protected status word.
func (c *Channel) Unwrap(resp apdu.ResponseAPDU) (apdu.ResponseAPDU, error) {
	c.incrementSSC()

	objs, err := tlv.Parse(resp.Data)
	if err != nil {
		return apdu.ResponseAPDU{}, fmt.Errorf("securechannel: Unwrap: %w", err)
	}

	var do87, do85, do99, do8E *tlv.Object
	for i := range objs {
		switch objs[i].Tag {
		case tagData87:
			do87 = &objs[i]
		case tagData85:
			do85 = &objs[i]
		case tagSW99:
			do99 = &objs[i]
		case tagMAC8E:
			do8E = &objs[i]
		}
	}
	if do8E == nil {
		return apdu.ResponseAPDU{}, &ErrMalformed{Reason: "missing MAC data object (8E)"}
	}

	var macInput []byte
	macInput = append(macInput, c.SSC...)
	if do87 != nil {
		macInput = append(macInput, tlv.Wrap(tagData87, do87.Value)...)
	}
	if do85 != nil {
		macInput = append(macInput, tlv.Wrap(tagData85, do85.Value)...)
	}
	if do99 != nil {
		macInput = append(macInput, tlv.Wrap(tagSW99, do99.Value)...)
	}
	macInput = cryptokit.Pad(macInput, c.BlockSize)

	expectedMAC, err := c.mac(macInput)
	if err != nil {
		return apdu.ResponseAPDU{}, fmt.Errorf("securechannel: Unwrap: %w", err)
	}
	if !constantTimeEqual(expectedMAC, do8E.Value) {
		return apdu.ResponseAPDU{}, &ErrMacMismatch{}
	}

	var plaintext []byte
	if do87 != nil {
		if len(do87.Value) == 0 || do87.Value[0] != 0x01 {
			return apdu.ResponseAPDU{}, &ErrMalformed{Reason: "87 data object missing 0x01 padding indicator"}
		}
		iv, err := c.dataIV()
		if err != nil {
			return apdu.ResponseAPDU{}, fmt.Errorf("securechannel: Unwrap: %w", err)
		}
		padded, err := c.decrypt(iv, do87.Value[1:])
		if err != nil {
			return apdu.ResponseAPDU{}, fmt.Errorf("securechannel: Unwrap: %w", err)
		}
		plaintext, err = cryptokit.Unpad(padded)
		if err != nil {
			return apdu.ResponseAPDU{}, fmt.Errorf("securechannel: Unwrap: %w", err)
		}
	}

	sw := resp.SW
	if do99 != nil {
		if len(do99.Value) != 2 {
			return apdu.ResponseAPDU{}, &ErrMalformed{Reason: "99 data object is not 2 bytes"}
		}
		sw = uint16(do99.Value[0])<<8 | uint16(do99.Value[1])
	}

	return apdu.ResponseAPDU{Data: plaintext, SW: sw}, nil
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

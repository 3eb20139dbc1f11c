package securechannel

import (
	"bytes"
	"encoding/hex"
	"testing"

	"mrtdterm/apdu"
	"mrtdterm/tlv"
)

func bacTestChannel(t *testing.T) *Channel {
	t.Helper()
	kEnc, _ := hex.DecodeString("AB94FDECF2674FDFB9B391F85D7F76F2")
	kMac, _ := hex.DecodeString("7962D9ECE03D1ACD4C76089DCE131543")
	initialSSC, _ := hex.DecodeString("887022120C06C226")
	ch, err := New3DES(kEnc, kMac, initialSSC)
	if err != nil {
		t.Fatalf("New3DES: %v", err)
	}
	return ch
}

func TestWrapSelectFileShape(t *testing.T) {
	ch := bacTestChannel(t)

	cmd := apdu.CommandAPDU{CLA: 0x00, INS: 0xA4, P1: 0x02, P2: 0x0C, Data: []byte{0x01, 0x1E}}
	wrapped, err := ch.Wrap(cmd)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	wantSSC, _ := hex.DecodeString("887022120C06C227")
	if !bytes.Equal(ch.SSC, wantSSC) {
		t.Fatalf("SSC after wrap = %X, want %X", ch.SSC, wantSSC)
	}
	if wrapped.CLA != 0x0C {
		t.Fatalf("wrapped CLA = %02X, want 0C", wrapped.CLA)
	}
	if !wrapped.WantsResponse || wrapped.Ne != 256 {
		t.Fatalf("wrapped Ne = %d, WantsResponse = %v, want 256/true", wrapped.Ne, wrapped.WantsResponse)
	}

	objs, err := tlv.Parse(wrapped.Data)
	if err != nil {
		t.Fatalf("tlv.Parse: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d data objects, want 2 (87, 8E)", len(objs))
	}
	if objs[0].Tag != 0x87 || len(objs[0].Value) != 9 || objs[0].Value[0] != 0x01 {
		t.Fatalf("DO 87 = tag %X len %d, want tag 87 len 9 starting 0x01", objs[0].Tag, len(objs[0].Value))
	}
	if objs[1].Tag != 0x8E || len(objs[1].Value) != 8 {
		t.Fatalf("DO 8E = tag %X len %d, want tag 8E len 8", objs[1].Tag, len(objs[1].Value))
	}
}

// TestWrapUnwrapRoundTrip checks the testable property of §8: wrapping
// then unwrapping a response built under the same channel round-trips to
// identical plaintext and SW, with the SSC advanced by exactly 2.
func TestWrapUnwrapRoundTrip(t *testing.T) {
	ch := bacTestChannel(t)
	startSSC := append([]byte{}, ch.SSC...)

	cmd := apdu.CommandAPDU{CLA: 0x00, INS: 0xB0, P1: 0x00, P2: 0x00, WantsResponse: true, Ne: 8}
	if _, err := ch.Wrap(cmd); err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	// Build a response the way the chip would, reusing the channel's own
	// primitives: the chip increments the SSC once more before MACing its
	// response, so the response MAC covers the post-wrap SSC plus one,
	// which is also the value Unwrap increments to before verifying.
	chip := *ch
	chip.SSC = append([]byte{}, ch.SSC...)
	chip.incrementSSC()
	respPlain := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	iv, err := ch.dataIV()
	if err != nil {
		t.Fatalf("dataIV: %v", err)
	}
	ciphertext, err := ch.encrypt(iv, cryptokitPad(respPlain, ch.BlockSize))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	do87 := tlv.Wrap(0x87, append([]byte{0x01}, ciphertext...))
	do99 := tlv.Wrap(0x99, []byte{0x90, 0x00})

	macInput := cryptokitPad(append(append(append([]byte{}, ch.SSC...), do87...), do99...), ch.BlockSize)
	macValue, err := ch.mac(macInput)
	if err != nil {
		t.Fatalf("mac: %v", err)
	}
	do8E := tlv.Wrap(0x8E, macValue)
	respData := append(append(append([]byte{}, do87...), do99...), do8E...)

	got, err := ch.Unwrap(apdu.ResponseAPDU{Data: respData, SW: 0x9000})
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(got.Data, respPlain) {
		t.Fatalf("Unwrap data = %X, want %X", got.Data, respPlain)
	}
	if got.SW != 0x9000 {
		t.Fatalf("Unwrap SW = %04X, want 9000", got.SW)
	}

	advanced := sscDelta(startSSC, ch.SSC)
	if advanced != 2 {
		t.Fatalf("SSC advanced by %d, want 2", advanced)
	}
}

func TestUnwrapMacMismatch(t *testing.T) {
	ch := bacTestChannel(t)
	do99 := tlv.Wrap(0x99, []byte{0x90, 0x00})
	do8E := tlv.Wrap(0x8E, bytes.Repeat([]byte{0xFF}, 8))
	data := append(append([]byte{}, do99...), do8E...)

	_, err := ch.Unwrap(apdu.ResponseAPDU{Data: data, SW: 0x9000})
	if _, ok := err.(*ErrMacMismatch); !ok {
		t.Fatalf("got %v, want ErrMacMismatch", err)
	}
}

func cryptokitPad(data []byte, blockSize int) []byte {
	out := append([]byte{}, data...)
	out = append(out, 0x80)
	for len(out)%blockSize != 0 {
		out = append(out, 0x00)
	}
	return out
}

func sscDelta(start, end []byte) uint64 {
	var s, e uint64
	for _, b := range start {
		s = s<<8 | uint64(b)
	}
	for _, b := range end {
		e = e<<8 | uint64(b)
	}
	return e - s
}

package apdu

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestCommandAPDUBytesShortForm(t *testing.T) {
	cmd := CommandAPDU{
		CLA: 0x00, INS: 0xA4, P1: 0x02, P2: 0x0C,
		Data: []byte{0x01, 0x1E}, WantsResponse: true, Ne: 0,
	}
	got, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want, _ := hex.DecodeString("00A4020C02011E00")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %X, want %X", got, want)
	}
}

func TestCommandAPDUBytesNoData(t *testing.T) {
	cmd := CommandAPDU{CLA: 0x00, INS: 0x84, P1: 0x00, P2: 0x00, WantsResponse: true, Ne: 8}
	got, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want, _ := hex.DecodeString("0084000008")
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %X, want %X", got, want)
	}
}

func TestCommandAPDUBytesExtended(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 300)
	cmd := CommandAPDU{CLA: 0x00, INS: 0x2A, P1: 0x00, P2: 0xBE, Data: data}
	got, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if got[4] != 0x00 || got[5] != 0x01 || got[6] != 0x2C {
		t.Fatalf("extended Lc header = %X, want 00012C", got[4:7])
	}
	if len(got) != 4+3+300 {
		t.Fatalf("length = %d, want %d", len(got), 4+3+300)
	}
}

func TestParseResponse(t *testing.T) {
	raw, _ := hex.DecodeString("0102039000")
	resp, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !bytes.Equal(resp.Data, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("Data = %X", resp.Data)
	}
	if resp.SW != 0x9000 || !resp.OK() {
		t.Fatalf("SW = %04X, want 9000", resp.SW)
	}
}

func TestParseResponseTooShort(t *testing.T) {
	if _, err := ParseResponse([]byte{0x90}); err == nil {
		t.Fatal("expected error for truncated response")
	}
}

// fakeTransport is an in-memory CardTransport test double.
type fakeTransport struct {
	responses [][]byte
	sent      [][]byte
	i         int
}

func (f *fakeTransport) Open() error   { return nil }
func (f *fakeTransport) Close() error  { return nil }
func (f *fakeTransport) IsOpen() bool  { return true }
func (f *fakeTransport) ATR() []byte   { return nil }
func (f *fakeTransport) Transmit(cmd []byte) ([]byte, error) {
	f.sent = append(f.sent, cmd)
	resp := f.responses[f.i]
	f.i++
	return resp, nil
}

func TestSelectFileMapsErrors(t *testing.T) {
	tr := &fakeTransport{responses: [][]byte{{0x6A, 0x82}}}
	svc := New(tr)
	err := svc.SelectFile(0x011E)
	var notFound *ErrFileNotFound
	if err == nil {
		t.Fatal("expected ErrFileNotFound")
	}
	if !bytesAs(err, &notFound) {
		t.Fatalf("got %v, want ErrFileNotFound", err)
	}
}

func bytesAs(err error, target **ErrFileNotFound) bool {
	if e, ok := err.(*ErrFileNotFound); ok {
		*target = e
		return true
	}
	return false
}

func TestExternalAuthenticateRetriesLe(t *testing.T) {
	cryptogram := bytes.Repeat([]byte{0x11}, 40)
	response := append(bytes.Repeat([]byte{0x22}, 40), 0x90, 0x00)
	tr := &fakeTransport{responses: [][]byte{{0x69, 0x85}, response}}
	svc := New(tr)
	got, err := svc.ExternalAuthenticate(cryptogram)
	if err != nil {
		t.Fatalf("ExternalAuthenticate: %v", err)
	}
	if len(tr.sent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(tr.sent))
	}
	if !bytes.Equal(got, response[:40]) {
		t.Fatalf("got %X", got)
	}
}

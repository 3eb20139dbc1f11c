// Package pcsc implements apdu.CardTransport over a PC/SC reader using
// github.com/ebfe/scard, the same library the rest of this module's
// lineage uses for physical card access.
package pcsc

import (
	"fmt"

	"github.com/ebfe/scard"
)

// Transport is a PC/SC connection to a single card, implementing
// apdu.CardTransport.
type Transport struct {
	ctx  *scard.Context
	card *scard.Card
	name string
	atr  []byte
	open bool
}

// ListReaders returns the names of all PC/SC readers currently attached.
func ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: establish context: %w", err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("pcsc: list readers: %w", err)
	}
	return readers, nil
}

// Open connects to the card present in the named reader.
func Open(readerName string) (*Transport, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: establish context: %w", err)
	}

	card, err := ctx.Connect(readerName, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: connect to %q: %w", readerName, err)
	}

	status, err := card.Status()
	if err != nil {
		card.Disconnect(scard.LeaveCard)
		ctx.Release()
		return nil, fmt.Errorf("pcsc: card status: %w", err)
	}

	return &Transport{ctx: ctx, card: card, name: readerName, atr: status.Atr, open: true}, nil
}

// OpenFirst connects to the card in the first reader reporting one
// present, convenient for single-reader development setups.
func OpenFirst() (*Transport, error) {
	readers, err := ListReaders()
	if err != nil {
		return nil, err
	}
	if len(readers) == 0 {
		return nil, fmt.Errorf("pcsc: no readers attached")
	}
	return Open(readers[0])
}

// Open is a no-op for Transport: connection happens in Open()/OpenFirst()
// at construction time. It exists to satisfy apdu.CardTransport for
// callers that hold the interface type rather than *Transport directly.
func (t *Transport) Open() error {
	if !t.open {
		return fmt.Errorf("pcsc: transport was closed; reconnect with Open/OpenFirst")
	}
	return nil
}

// Transmit sends a single APDU and returns the card's raw response bytes.
func (t *Transport) Transmit(cmd []byte) ([]byte, error) {
	resp, err := t.card.Transmit(cmd)
	if err != nil {
		return nil, fmt.Errorf("pcsc: transmit: %w", err)
	}
	return resp, nil
}

// Close disconnects from the card and releases the PC/SC context.
func (t *Transport) Close() error {
	if t.card != nil {
		t.card.Disconnect(scard.LeaveCard)
	}
	if t.ctx != nil {
		t.ctx.Release()
	}
	t.open = false
	return nil
}

// IsOpen reports whether the transport has an active connection.
func (t *Transport) IsOpen() bool { return t.open }

// ATR returns the card's Answer To Reset bytes captured at connect time.
func (t *Transport) ATR() []byte { return t.atr }

// Reader returns the PC/SC reader name this transport is connected through.
func (t *Transport) Reader() string { return t.name }

// Reset performs a warm (or, if cold is true, power-cycling) reconnect,
// used to recover after a desynchronized secure channel forces the caller
// back to a fresh SELECT.
func (t *Transport) Reset(cold bool) error {
	initType := scard.ResetCard
	if cold {
		initType = scard.UnpowerCard
	}
	if err := t.card.Reconnect(scard.ShareShared, scard.ProtocolAny, initType); err != nil {
		return fmt.Errorf("pcsc: reset: %w", err)
	}
	if status, err := t.card.Status(); err == nil {
		t.atr = status.Atr
	}
	return nil
}

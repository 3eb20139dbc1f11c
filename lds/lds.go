// Package lds holds the fixed applet AID and file/SFI lookup table for the
// ICAO 9303 Logical Data Structure. Data group contents themselves are
// consumed as opaque byte blobs by the caller.
package lds

// AID is the ICAO MRTD applet identifier.
var AID = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}

// File identifiers for the fixed EF names and DG1..DG16.
const (
	EFCOM         uint16 = 0x011E
	EFSOD         uint16 = 0x011D
	EFCardAccess  uint16 = 0x011C
	EFCardSecurity uint16 = 0x011D
)

// DGFileID returns the file identifier for data group n (1..16).
func DGFileID(n int) (uint16, bool) {
	if n < 1 || n > 16 {
		return 0, false
	}
	return uint16(0x0100 | n), true
}

// DGShortFileID returns the short file identifier for data group n (1..16):
// DGn maps to SFI 0x01..0x10.
func DGShortFileID(n int) (byte, bool) {
	if n < 1 || n > 16 {
		return 0, false
	}
	return byte(n), true
}

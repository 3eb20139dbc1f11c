package apdu

import "fmt"

// Status words named in the ICAO command set and the mappings ApduService
// recognizes.
const (
	SWNoError                   uint16 = 0x9000
	SWFileNotFound               uint16 = 0x6A82
	SWSecurityStatusNotSatisfied uint16 = 0x6982
	SWConditionsNotSatisfied     uint16 = 0x6985
	SWCommandNotAllowed          uint16 = 0x6986
	SWWrongLength                uint16 = 0x6700
	SWWrongLe                    uint16 = 0x6C00 // low byte carries the correct Le
)

// SWToString renders a status word for diagnostics.
func SWToString(sw uint16) string {
	switch sw {
	case SWNoError:
		return "no error"
	case SWFileNotFound:
		return "file not found"
	case SWSecurityStatusNotSatisfied:
		return "security status not satisfied"
	case SWConditionsNotSatisfied:
		return "conditions of use not satisfied"
	case SWCommandNotAllowed:
		return "command not allowed"
	case SWWrongLength:
		return "wrong length"
	default:
		if sw&0xFF00 == 0x6C00 {
			return "wrong Le, correct length in SW2"
		}
		return "unrecognized status word"
	}
}

// Error reports a non-success status word after a semantic operation that
// expected one, for SWs not mapped to a more specific domain error.
type Error struct {
	Op string
	SW uint16
}

func (e *Error) Error() string {
	return fmt.Sprintf("apdu: %s: SW=%04X (%s)", e.Op, e.SW, SWToString(e.SW))
}

// ErrFileNotFound is returned by SelectFile when the chip reports SW 0x6A82.
type ErrFileNotFound struct{ FileID uint16 }

func (e *ErrFileNotFound) Error() string {
	return fmt.Sprintf("apdu: file 0x%04X not found", e.FileID)
}

// ErrAccessDenied is returned by SelectFile when the chip reports a
// security-status SW (0x6982, 0x6985 or 0x6986).
type ErrAccessDenied struct {
	Op string
	SW uint16
}

func (e *ErrAccessDenied) Error() string {
	return fmt.Sprintf("apdu: %s: access denied, SW=%04X (%s)", e.Op, e.SW, SWToString(e.SW))
}

// ErrMalformedResponse reports a response-APDU that could not be parsed
// into the shape a semantic command expects (too short, wrong length
// field, missing expected TLV wrapper).
type ErrMalformedResponse struct {
	Op     string
	Reason string
}

func (e *ErrMalformedResponse) Error() string {
	return fmt.Sprintf("apdu: %s: malformed response: %s", e.Op, e.Reason)
}

// TransportError wraps an underlying CardTransport I/O failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("apdu: %s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Package mrz computes BAC/PACE key seeds from the machine-readable zone
// of a travel document.
package mrz

import (
	"crypto/sha1"
	"fmt"
)

// Key holds the three MRZ fields a BAC or MRZ-sourced PACE key is derived
// from: document number, date of birth and date of expiry.
type Key struct {
	DocumentNumber string // 1-9 printable chars, normalized on use
	DateOfBirth    string // 6 digits, YYMMDD
	DateOfExpiry   string // 6 digits, YYMMDD
}

// weights used by the ICAO 9303 check-digit algorithm, cycling 7,3,1.
var checkDigitWeights = [3]int{7, 3, 1}

// charValue maps an MRZ character to its numeric value for check-digit
// computation: digits are themselves, letters are A=10..Z=35, '<' is 0.
func charValue(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, nil
	case c == '<':
		return 0, nil
	default:
		return 0, fmt.Errorf("mrz: invalid MRZ character %q", c)
	}
}

// CheckDigit computes the ICAO 9303 check digit for an MRZ field.
func CheckDigit(field string) (byte, error) {
	sum := 0
	for i := 0; i < len(field); i++ {
		v, err := charValue(field[i])
		if err != nil {
			return 0, err
		}
		sum += v * checkDigitWeights[i%3]
	}
	return byte('0' + sum%10), nil
}

// NormalizeDocumentNumber strips trailing filler characters ('<') and
// right-pads the result with '<' to the fixed 9-character MRZ field width.
func NormalizeDocumentNumber(docNum string) string {
	end := len(docNum)
	for end > 0 && docNum[end-1] == '<' {
		end--
	}
	trimmed := docNum[:end]
	if len(trimmed) >= 9 {
		return trimmed[:9]
	}
	out := make([]byte, 9)
	copy(out, trimmed)
	for i := len(trimmed); i < 9; i++ {
		out[i] = '<'
	}
	return string(out)
}

// KeySeed computes the 16-byte BAC/PACE-MRZ key seed:
//
//	SHA1(docNum || check(docNum) || dob || check(dob) || doe || check(doe))[:16]
//
// where docNum is normalized per NormalizeDocumentNumber first.
func (k Key) KeySeed() ([]byte, error) {
	docNum := NormalizeDocumentNumber(k.DocumentNumber)

	cdDoc, err := CheckDigit(docNum)
	if err != nil {
		return nil, fmt.Errorf("mrz: document number check digit: %w", err)
	}
	cdDob, err := CheckDigit(k.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("mrz: date of birth check digit: %w", err)
	}
	cdDoe, err := CheckDigit(k.DateOfExpiry)
	if err != nil {
		return nil, fmt.Errorf("mrz: date of expiry check digit: %w", err)
	}

	var buf []byte
	buf = append(buf, docNum...)
	buf = append(buf, cdDoc)
	buf = append(buf, k.DateOfBirth...)
	buf = append(buf, cdDob)
	buf = append(buf, k.DateOfExpiry...)
	buf = append(buf, cdDoe)

	sum := sha1.Sum(buf)
	seed := make([]byte, 16)
	copy(seed, sum[:16])
	return seed, nil
}

// Package session holds the configuration and orchestration for a single
// MRTD read session: which access-control protocol to attempt, the MRZ
// key material or CAN/PIN to authenticate with, and the data groups to
// read back afterward.
package session

import (
	"encoding/json"
	"fmt"
	"os"

	"mrtdterm/mrz"
	"mrtdterm/pace"
)

// PasswordSource identifies which of the four PACE password references
// (§6's key reference byte) a Config uses.
type PasswordSource string

const (
	PasswordMRZ PasswordSource = "MRZ"
	PasswordCAN PasswordSource = "CAN"
	PasswordPIN PasswordSource = "PIN"
	PasswordPUK PasswordSource = "PUK"
)

func (p PasswordSource) keyRef() byte {
	switch p {
	case PasswordCAN:
		return pace.KeyRefCAN
	case PasswordPIN:
		return pace.KeyRefPIN
	case PasswordPUK:
		return pace.KeyRefPUK
	default:
		return pace.KeyRefMRZ
	}
}

// Config describes everything a read session needs, loadable from a JSON
// file or built programmatically by a caller.
type Config struct {
	MRZ mrz.Key `json:"mrz"`

	PasswordSource PasswordSource `json:"password_source"`
	CAN            string         `json:"can,omitempty"`
	PIN            string         `json:"pin,omitempty"`

	PreferredPaceOID string `json:"preferred_pace_oid,omitempty"`

	// DataGroups lists the data group numbers (1..16) to read after
	// authentication; empty means EF.COM and EF.SOD only.
	DataGroups []int `json:"data_groups,omitempty"`
}

// KeyRef returns the MSE Set AT password-source byte for c's configured
// PasswordSource.
func (c Config) KeyRef() byte { return c.PasswordSource.keyRef() }

// LoadConfig reads a JSON-encoded Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: LoadConfig: %w", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("session: LoadConfig: %w", err)
	}
	if c.PasswordSource == "" {
		c.PasswordSource = PasswordMRZ
	}
	return &c, nil
}

// Save writes c as JSON to path.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("session: Save: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("session: Save: %w", err)
	}
	return nil
}

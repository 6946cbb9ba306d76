package config

import (
	"fmt"
	"regexp"
)

// ChatSourceConfig holds the chat transport credentials.
// The transport itself is out of scope here; only validation of its
// configuration surface lives in the core.
type ChatSourceConfig struct {
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
	Phone   string `yaml:"phone"`
}

var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Validate enforces api_id > 0, api_hash length 32, phone E.164.
func (c ChatSourceConfig) Validate() error {
	if c.APIID <= 0 {
		return fmt.Errorf("chatsource: api_id must be positive")
	}
	if len(c.APIHash) != 32 {
		return fmt.Errorf("chatsource: api_hash must be exactly 32 characters, got %d", len(c.APIHash))
	}
	if !e164.MatchString(c.Phone) {
		return fmt.Errorf("chatsource: phone must be E.164 formatted")
	}
	return nil
}

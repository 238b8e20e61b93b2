// Package cardid turns card UID bytes into the canonical textual identifier
// sent to the authorization service.
package cardid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Prefix marks an identifier as hex.
const Prefix = "0x"

// ErrEmptyUID is returned when the reader reports a UID with no bytes.
var ErrEmptyUID = errors.New("empty card uid")

// ID is a canonical card identifier, e.g. "0xdeadbeef".
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Encode renders uid as Prefix followed by two lowercase hex digits per byte.
func Encode(uid []byte) (ID, error) {
	if len(uid) == 0 {
		return "", ErrEmptyUID
	}
	return ID(Prefix + hex.EncodeToString(uid)), nil
}

// Parse normalizes an operator-entered identifier. It accepts an optional
// 0x prefix, either case, and ':' or '-' byte separators.
func Parse(s string) (ID, error) {
	raw := strings.TrimSpace(s)
	if len(raw) >= 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		raw = raw[2:]
	}
	raw = strings.NewReplacer(":", "", "-", "").Replace(raw)

	uid, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("parse card id %q: %w", s, err)
	}
	return Encode(uid)
}

// Bytes returns the UID bytes encoded in id.
func (id ID) Bytes() ([]byte, error) {
	s := string(id)
	if !strings.HasPrefix(s, Prefix) {
		return nil, fmt.Errorf("card id %q: missing %s prefix", s, Prefix)
	}
	return hex.DecodeString(s[len(Prefix):])
}

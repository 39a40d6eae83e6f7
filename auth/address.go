// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidAddress = errors.New("address must be 0x followed by 40 hex characters")

const addressHexLen = 40

// NormalizeAddress validates an account address and returns its canonical
// lowercase form, so the same account always maps to one voter.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+addressHexLen || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", ErrInvalidAddress
	}
	body := strings.ToLower(s[2:])
	if _, err := hex.DecodeString(body); err != nil {
		return "", ErrInvalidAddress
	}
	return "0x" + body, nil
}

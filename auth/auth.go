// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token format")
)

const (
	voterTokenBytes = 24 // 192 bits
	slugBytes       = 8
	ipHashBytes     = 8
)

var b64 = base64.RawURLEncoding

// NewID returns a random UUIDv4 string for database records.
func NewID() string {
	return uuid.NewString()
}

// sign is HMAC-SHA256 of msg keyed by salt.
func sign(salt, msg string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(msg))
	return h.Sum(nil)
}

// AdminKey derives the admin key of a poll. It is never stored; any
// holder of the salt can recompute it.
func AdminKey(pollID, salt string) string {
	return b64.EncodeToString(sign(salt, "admin:"+pollID))
}

// CheckAdminKey compares key against the derived admin key in constant time.
func CheckAdminKey(pollID, key, salt string) error {
	if !hmac.Equal([]byte(key), []byte(AdminKey(pollID, salt))) {
		return ErrInvalidAdminKey
	}
	return nil
}

// NewVoterToken returns a random secret handed out when an address is claimed.
func NewVoterToken() (string, error) {
	b := make([]byte, voterTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate voter token: %w", err)
	}
	return b64.EncodeToString(b), nil
}

// CheckVoterToken rejects tokens that could not have come from NewVoterToken.
func CheckVoterToken(token string) error {
	b, err := b64.DecodeString(token)
	if err != nil || len(b) != voterTokenBytes {
		return ErrInvalidToken
	}
	return nil
}

// ShareSlug derives the short public identifier of a published poll.
// Output is base62 so it survives any URL context.
func ShareSlug(pollID, salt string) string {
	sum := sign(salt, "slug:"+pollID)
	return new(big.Int).SetBytes(sum[:slugBytes]).Text(62)
}

// HashIP returns a salted, truncated digest of an IP address. Enough bits
// to spot repeats, too few to reverse.
func HashIP(ip, salt string) string {
	return hex.EncodeToString(sign(salt, ip)[:ipHashBytes])
}

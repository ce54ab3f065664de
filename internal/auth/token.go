// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the daemon's token authentication: opaque
// "<id>.<secret>" bearer tokens, sha-256 secret hashing with a
// constant-time compare, expiry/revocation honoring, and the wildcard
// permission vocabulary domain handlers declare against.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tacogips/codexd/internal/repo"
)

// secretBytes is the length of the random secret half of a wire token.
const secretBytes = 24

// ErrInvalidTokenFormat is returned by ParseToken when the wire token is
// not "<id>.<secret>".
var ErrInvalidTokenFormat = errors.New("auth: token must be \"<id>.<secret>\"")

// ErrTokenRevoked is returned when a token's RevokedAt is set.
var ErrTokenRevoked = errors.New("auth: token revoked")

// ErrTokenExpired is returned when a token's ExpiresAt has passed.
var ErrTokenExpired = errors.New("auth: token expired")

// ErrSecretMismatch is returned when the presented secret doesn't hash to
// the stored hash.
var ErrSecretMismatch = errors.New("auth: secret mismatch")

// Issue mints a new token: a fresh uuid id, a random secret, and the
// record to persist (tokenHash only; the raw secret is never stored).
// The returned wireToken is shown to the caller exactly once.
func Issue(name string, permissions []string, expiresAt *time.Time) (wireToken string, rec repo.TokenRecord, err error) {
	secretRaw := make([]byte, secretBytes)
	if _, err := rand.Read(secretRaw); err != nil {
		return "", repo.TokenRecord{}, fmt.Errorf("auth: generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretRaw)
	id := uuid.NewString()

	rec = repo.TokenRecord{
		ID:          id,
		Name:        name,
		Permissions: permissions,
		TokenHash:   HashSecret(secret),
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}
	return id + "." + secret, rec, nil
}

// ParseToken splits a wire token "<id>.<secret>" into its two halves.
func ParseToken(wireToken string) (id, secret string, err error) {
	idx := strings.IndexByte(wireToken, '.')
	if idx <= 0 || idx == len(wireToken)-1 {
		return "", "", ErrInvalidTokenFormat
	}
	return wireToken[:idx], wireToken[idx+1:], nil
}

// HashSecret returns hex(sha256(secret)), the only form a secret is ever
// persisted in.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify checks secret against rec's stored hash in constant time and
// honors RevokedAt/ExpiresAt.
func Verify(rec repo.TokenRecord, secret string) error {
	if rec.RevokedAt != nil {
		return ErrTokenRevoked
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return ErrTokenExpired
	}

	want := []byte(rec.TokenHash)
	got := []byte(HashSecret(secret))
	if len(want) != len(got) || subtle.ConstantTimeCompare(want, got) != 1 {
		return ErrSecretMismatch
	}
	return nil
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_ParsesBackApart(t *testing.T) {
	wireToken, rec, err := Issue("ci", []string{PermSessionRead}, nil)
	require.NoError(t, err)

	id, secret, err := ParseToken(wireToken)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)
	assert.NotEmpty(t, secret)
	assert.Equal(t, HashSecret(secret), rec.TokenHash)
}

func TestParseToken_InvalidFormat(t *testing.T) {
	cases := []string{"", "noseparator", ".nosecretid", "idnosecret.", "."}
	for _, c := range cases {
		_, _, err := ParseToken(c)
		assert.ErrorIs(t, err, ErrInvalidTokenFormat, "case %q", c)
	}
}

func TestHashSecret_Deterministic(t *testing.T) {
	assert.Equal(t, HashSecret("abc"), HashSecret("abc"))
	assert.NotEqual(t, HashSecret("abc"), HashSecret("abd"))
}

func TestVerify_Success(t *testing.T) {
	wireToken, rec, err := Issue("ci", nil, nil)
	require.NoError(t, err)
	_, secret, err := ParseToken(wireToken)
	require.NoError(t, err)

	assert.NoError(t, Verify(rec, secret))
}

func TestVerify_SecretMismatch(t *testing.T) {
	_, rec, err := Issue("ci", nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, Verify(rec, "wrong-secret"), ErrSecretMismatch)
}

func TestVerify_Revoked(t *testing.T) {
	_, rec, err := Issue("ci", nil, nil)
	require.NoError(t, err)
	now := time.Now()
	rec.RevokedAt = &now

	assert.ErrorIs(t, Verify(rec, "anything"), ErrTokenRevoked)
}

func TestVerify_Expired(t *testing.T) {
	_, rec, err := Issue("ci", nil, nil)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	rec.ExpiresAt = &past

	assert.ErrorIs(t, Verify(rec, "anything"), ErrTokenExpired)
}

func TestVerify_NotYetExpired(t *testing.T) {
	wireToken, rec, err := Issue("ci", nil, nil)
	require.NoError(t, err)
	future := time.Now().Add(time.Hour)
	rec.ExpiresAt = &future
	_, secret, err := ParseToken(wireToken)
	require.NoError(t, err)

	assert.NoError(t, Verify(rec, secret))
}

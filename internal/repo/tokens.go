// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import "time"

// TokenRecord is the persisted shape of a managed token. The
// raw secret is never persisted, only the hash of it; issuing a wire
// token (`"<id>.<secret>"`) and hashing the secret are internal/auth's
// job, not this repository's.
type TokenRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	TokenHash   string     `json:"tokenHash"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// TokensDocument is the on-disk shape of tokens.json.
type TokensDocument struct {
	Tokens []TokenRecord `json:"tokens"`
}

// TokenRepository persists TokenRecords to tokens.json.
type TokenRepository struct {
	store *Store[TokensDocument]
}

// NewTokenRepository opens the token repository at path.
func NewTokenRepository(path string) *TokenRepository {
	return &TokenRepository{store: NewStore(path, func() TokensDocument { return TokensDocument{} })}
}

// List returns every persisted token record.
func (r *TokenRepository) List() ([]TokenRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Tokens, nil
}

// Get returns the token record with the given id.
func (r *TokenRepository) Get(id string) (TokenRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return TokenRecord{}, err
	}
	for _, t := range doc.Tokens {
		if t.ID == id {
			return t, nil
		}
	}
	return TokenRecord{}, ErrNotFound
}

// Create persists a new token record.
func (r *TokenRepository) Create(rec TokenRecord) (TokenRecord, error) {
	_, err := r.store.Update(func(doc TokensDocument) (TokensDocument, error) {
		doc.Tokens = append(doc.Tokens, rec)
		return doc, nil
	})
	return rec, err
}

// Revoke stamps the token's RevokedAt, leaving the record in place for
// audit rather than deleting it.
func (r *TokenRepository) Revoke(id string) (TokenRecord, error) {
	var updated TokenRecord
	_, err := r.store.Update(func(doc TokensDocument) (TokensDocument, error) {
		for i := range doc.Tokens {
			if doc.Tokens[i].ID != id {
				continue
			}
			now := time.Now()
			doc.Tokens[i].RevokedAt = &now
			updated = doc.Tokens[i]
			return doc, nil
		}
		return doc, ErrNotFound
	})
	return updated, err
}

// Delete permanently removes a token record.
func (r *TokenRepository) Delete(id string) error {
	_, err := r.store.Update(func(doc TokensDocument) (TokensDocument, error) {
		out := doc.Tokens[:0]
		for _, t := range doc.Tokens {
			if t.ID != id {
				out = append(out, t)
			}
		}
		doc.Tokens = out
		return doc, nil
	})
	return err
}

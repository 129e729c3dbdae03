package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Credential is a cached cookie set for one tracker account. A
// non-expired credential is reused without contacting the site.
type Credential struct {
	Username  string
	Cookies   map[string]string
	ExpiresAt time.Time
}

// CredentialStore persists session cookies per (tracker, username).
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore constructs a credential store.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Find returns the cached credential for the account. An expired
// credential is deleted on sight and reported as absent, matching the
// replace-wholesale lifecycle: re-authentication writes a fresh row.
func (s *CredentialStore) Find(ctx context.Context, tracker, username string) (*Credential, bool, error) {
	const query = `
		SELECT cookies, expiry_time
		FROM accounts
		WHERE tracker = ? AND username = ?
	`

	var (
		cookiesJSON string
		expiryTime  time.Time
	)

	err := s.db.QueryRowContext(ctx, query, tracker, username).Scan(&cookiesJSON, &expiryTime)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find credential: %w", err)
	}

	if expiryTime.Before(time.Now()) {
		if err := s.Delete(ctx, tracker, username); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	cookies := make(map[string]string)
	if err := json.Unmarshal([]byte(cookiesJSON), &cookies); err != nil {
		return nil, false, fmt.Errorf("decode credential cookies: %w", err)
	}

	return &Credential{
		Username:  username,
		Cookies:   cookies,
		ExpiresAt: expiryTime,
	}, true, nil
}

// Save stores a credential, replacing any previous one for the account.
func (s *CredentialStore) Save(ctx context.Context, tracker string, cred *Credential) error {
	cookiesJSON, err := json.Marshal(cred.Cookies)
	if err != nil {
		return fmt.Errorf("encode credential cookies: %w", err)
	}

	const query = `
		INSERT INTO accounts (tracker, username, cookies, expiry_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tracker, username) DO UPDATE SET
			cookies = excluded.cookies,
			expiry_time = excluded.expiry_time
	`

	if _, err := s.db.ExecContext(ctx, query, tracker, cred.Username, string(cookiesJSON), cred.ExpiresAt); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	return nil
}

// Delete removes the credential for the account.
func (s *CredentialStore) Delete(ctx context.Context, tracker, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE tracker = ? AND username = ?`, tracker, username); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// DeleteAll removes every stored credential, optionally scoped to one tracker.
func (s *CredentialStore) DeleteAll(ctx context.Context, tracker string) error {
	var err error
	if tracker == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM accounts`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM accounts WHERE tracker = ?`, tracker)
	}
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

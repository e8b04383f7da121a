package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
// Token values are encrypted with AES-256-GCM before write and decrypted after
// read. A nil key stores tokens in plaintext; the composition root logs a
// warning in that case.
type AccountRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key, or nil to store tokens unencrypted.
}

// NewAccountRepo creates an AccountRepo backed by the given DB. key must be
// 32 bytes for AES-256-GCM, or nil to disable at-rest encryption.
func NewAccountRepo(db *DB, key []byte) *AccountRepo {
	return &AccountRepo{db: db, key: key}
}

// Upsert inserts the account or rotates tokens in place when a row for the
// same address already exists. Preferences are written on insert only; updates
// go through UpdatePreferences.
func (r *AccountRepo) Upsert(ctx context.Context, account model.Account) error {
	access, err := r.encrypt(account.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token for %q: %w", account.EmailAddress, err)
	}
	refresh, err := r.encrypt(account.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token for %q: %w", account.EmailAddress, err)
	}

	const query = `
		INSERT INTO accounts (
			email_address, access_token, refresh_token, token_expiry,
			preferred_language, preferred_tone, auto_send, connected_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(email_address) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			updated_at = CURRENT_TIMESTAMP
	`

	autoSend := 0
	if account.AutoSend {
		autoSend = 1
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		account.EmailAddress, access, refresh, nullableTime(account.TokenExpiry),
		account.Language(), account.Tone(), autoSend,
	)
	if err != nil {
		return fmt.Errorf("upsert account %q: %w", account.EmailAddress, err)
	}

	return nil
}

// GetByEmail retrieves a single account by mailbox address.
// Returns nil, nil if the account does not exist.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	const query = `
		SELECT id, email_address, access_token, refresh_token, token_expiry,
		       preferred_language, preferred_tone, auto_send, connected_at, updated_at
		FROM accounts
		WHERE email_address = ?
	`

	account, err := r.scanAccount(r.db.Reader.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %q: %w", email, err)
	}

	return account, nil
}

// ListAll returns every connected account, ordered by address.
func (r *AccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	const query = `
		SELECT id, email_address, access_token, refresh_token, token_expiry,
		       preferred_language, preferred_tone, auto_send, connected_at, updated_at
		FROM accounts
		ORDER BY email_address
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// UpdatePreferences sets the reply language, tone, and auto-send flag.
func (r *AccountRepo) UpdatePreferences(ctx context.Context, email, language, tone string, autoSend bool) error {
	const query = `
		UPDATE accounts
		SET preferred_language = ?, preferred_tone = ?, auto_send = ?, updated_at = CURRENT_TIMESTAMP
		WHERE email_address = ?
	`

	send := 0
	if autoSend {
		send = 1
	}

	res, err := r.db.Writer.ExecContext(ctx, query, language, tone, send, email)
	if err != nil {
		return fmt.Errorf("update preferences for %q: %w", email, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update preferences for %q: %w", email, err)
	}
	if affected == 0 {
		return driven.ErrAccountNotFound
	}

	return nil
}

// UpdateTokens persists a rotated token pair after a transparent refresh.
func (r *AccountRepo) UpdateTokens(ctx context.Context, email, accessToken, refreshToken string, expiry time.Time) error {
	access, err := r.encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token for %q: %w", email, err)
	}
	refresh, err := r.encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token for %q: %w", email, err)
	}

	const query = `
		UPDATE accounts
		SET access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = CURRENT_TIMESTAMP
		WHERE email_address = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query, access, refresh, nullableTime(expiry), email)
	if err != nil {
		return fmt.Errorf("update tokens for %q: %w", email, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tokens for %q: %w", email, err)
	}
	if affected == 0 {
		return driven.ErrAccountNotFound
	}

	return nil
}

// Delete disconnects the mailbox. Deleting an unknown address is a no-op.
func (r *AccountRepo) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM accounts WHERE email_address = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("delete account %q: %w", email, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanAccount.
type scanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepo) scanAccount(row scanner) (*model.Account, error) {
	var (
		account        model.Account
		access         string
		refresh        string
		expiry         sql.NullString
		autoSend       int
		connectedAtRaw string
		updatedAtRaw   string
	)

	err := row.Scan(
		&account.ID, &account.EmailAddress, &access, &refresh, &expiry,
		&account.PreferredLanguage, &account.PreferredTone, &autoSend,
		&connectedAtRaw, &updatedAtRaw,
	)
	if err != nil {
		return nil, err
	}

	if account.AccessToken, err = r.decrypt(access); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if account.RefreshToken, err = r.decrypt(refresh); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	account.AutoSend = autoSend != 0

	if expiry.Valid && expiry.String != "" {
		if account.TokenExpiry, err = parseTime(expiry.String); err != nil {
			return nil, fmt.Errorf("parse token_expiry: %w", err)
		}
	}
	if account.ConnectedAt, err = parseTime(connectedAtRaw); err != nil {
		return nil, fmt.Errorf("parse connected_at: %w", err)
	}
	if account.UpdatedAt, err = parseTime(updatedAtRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &account, nil
}

// nullableTime converts a zero time to NULL and everything else to RFC 3339.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
// With a nil key the plaintext passes through unchanged.
func (r *AccountRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *AccountRepo) decrypt(encoded string) (string, error) {
	if r.key == nil {
		return encoded, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nicoespa/MesaYa/internal/models"
)

// CreateVerification stores a freshly issued one-time code. Older rows
// for the same phone are left in place; lookups only honor the newest
// matching one.
func (db *DB) CreateVerification(ctx context.Context, v *models.PhoneVerification) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO phone_verifications (id, phone, code, expires_at, verified, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Phone, v.Code, v.ExpiresAt, v.Verified, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

// LatestMatchingVerification returns the most recently issued
// unverified, unexpired row matching phone and code, or ErrNotFound.
func (db *DB) LatestMatchingVerification(ctx context.Context, normalizedPhone, code string, now time.Time) (*models.PhoneVerification, error) {
	row := db.QueryRowContext(ctx, `
        SELECT id, phone, code, expires_at, verified, created_at
        FROM phone_verifications
        WHERE phone = ? AND code = ? AND verified = 0 AND expires_at > ?
        ORDER BY created_at DESC
        LIMIT 1`,
		normalizedPhone, code, now)

	var v models.PhoneVerification
	err := row.Scan(&v.ID, &v.Phone, &v.Code, &v.ExpiresAt, &v.Verified, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup verification: %w", err)
	}
	return &v, nil
}

// MarkVerified consumes a code. The verified=0 guard makes the update
// conditional: a row already consumed by a concurrent confirm reports
// ErrConcurrentModification instead of silently re-verifying.
func (db *DB) MarkVerified(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE phone_verifications SET verified = 1 WHERE id = ? AND verified = 0`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nicoespa/MesaYa/internal/models"
)

const partyColumns = `id, waitlist_id, restaurant_id, name, phone, size, state, token,
       eta_minutes, notes, created_at, notified_at, seated_at, no_show_at, canceled_at`

// CreateParty inserts a new queued party.
func (db *DB) CreateParty(ctx context.Context, p *models.Party) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO parties (id, waitlist_id, restaurant_id, name, phone, size, state, token, eta_minutes, notes, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.WaitlistID, p.RestaurantID, p.Name, p.Phone, p.Size, p.State, p.Token,
		sqlNullInt(p.ETAMinutes), p.Notes, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	return nil
}

// GetParty returns a party by id.
func (db *DB) GetParty(ctx context.Context, id string) (*models.Party, error) {
	row := db.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = ?`, id)
	return scanParty(row)
}

// GetPartyByToken returns a party by its public status token.
func (db *DB) GetPartyByToken(ctx context.Context, token string) (*models.Party, error) {
	row := db.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM parties WHERE token = ?`, token)
	return scanParty(row)
}

// ListActiveParties returns the restaurant's non-terminal parties
// ordered by created_at, ties broken by id for determinism.
func (db *DB) ListActiveParties(ctx context.Context, restaurantID string) ([]models.Party, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+partyColumns+`
        FROM parties
        WHERE restaurant_id = ? AND state IN (?, ?, ?)
        ORDER BY created_at ASC, id ASC`,
		restaurantID, models.StateQueued, models.StateNotified, models.StateOnTheWay)
	if err != nil {
		return nil, fmt.Errorf("list active parties: %w", err)
	}
	defer rows.Close()

	var parties []models.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

// ListPartyHistory returns the restaurant's terminal parties created
// since the given time, newest first.
func (db *DB) ListPartyHistory(ctx context.Context, restaurantID string, since time.Time, limit int) ([]models.Party, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+partyColumns+`
        FROM parties
        WHERE restaurant_id = ? AND state IN (?, ?, ?) AND created_at >= ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?`,
		restaurantID, models.StateSeated, models.StateNoShow, models.StateCanceled, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list party history: %w", err)
	}
	defer rows.Close()

	var parties []models.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

// stampColumns whitelists the per-transition timestamp column.
var stampColumns = map[models.PartyState]string{
	models.StateNotified: "notified_at",
	models.StateSeated:   "seated_at",
	models.StateNoShow:   "no_show_at",
	models.StateCanceled: "canceled_at",
}

// TransitionParty atomically moves a party to the target state. The
// guard (allowed source states) is part of the UPDATE's WHERE clause,
// so the check and the write are a single statement; a losing
// concurrent request affects zero rows and is reported from the
// re-read state. Returns the updated party.
func (db *DB) TransitionParty(ctx context.Context, id string, from []models.PartyState, to models.PartyState, now time.Time) (*models.Party, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("transition party: empty guard")
	}

	set := "state = ?"
	args := []any{to}
	if col, ok := stampColumns[to]; ok {
		set += ", " + col + " = ?"
		args = append(args, now)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args = append(args, id)
	for _, s := range from {
		args = append(args, s)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE parties SET `+set+` WHERE id = ? AND state IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("transition party: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition party: %w", err)
	}
	if affected == 0 {
		current, err := db.GetParty(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &models.InvalidTransitionError{PartyID: id, From: current.State, Attempted: to}
	}

	return db.GetParty(ctx, id)
}

// UpdatePartyFields replaces the staff-editable fields. No state
// transition semantics; allowed in any state.
func (db *DB) UpdatePartyFields(ctx context.Context, id, name, phone string, size int, etaMinutes *int, notes string) error {
	res, err := db.ExecContext(ctx, `
        UPDATE parties SET name = ?, phone = ?, size = ?, eta_minutes = ?, notes = ?
        WHERE id = ?`,
		name, phone, size, sqlNullInt(etaMinutes), notes, id)
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParty(row rowScanner) (*models.Party, error) {
	var p models.Party
	var eta sql.NullInt64
	var notes sql.NullString
	var notifiedAt, seatedAt, noShowAt, canceledAt sql.NullTime

	err := row.Scan(&p.ID, &p.WaitlistID, &p.RestaurantID, &p.Name, &p.Phone, &p.Size,
		&p.State, &p.Token, &eta, &notes, &p.CreatedAt,
		&notifiedAt, &seatedAt, &noShowAt, &canceledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan party: %w", err)
	}

	if eta.Valid {
		v := int(eta.Int64)
		p.ETAMinutes = &v
	}
	if notes.Valid {
		p.Notes = notes.String
	}
	p.NotifiedAt = nullTime(notifiedAt)
	p.SeatedAt = nullTime(seatedAt)
	p.NoShowAt = nullTime(noShowAt)
	p.CanceledAt = nullTime(canceledAt)
	return &p, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func sqlNullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

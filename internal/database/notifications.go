package database

import (
	"context"
	"fmt"

	"github.com/nicoespa/MesaYa/internal/models"
)

// CreateNotification appends one immutable delivery audit record.
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO notifications (id, party_id, channel, template, status, cost, provider_id, sent_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.PartyID, n.Channel, n.Template, n.Status, n.Cost, n.ProviderID, n.SentAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListNotificationsByParty returns a party's delivery history, newest
// first.
func (db *DB) ListNotificationsByParty(ctx context.Context, partyID string) ([]models.Notification, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, party_id, channel, template, status, COALESCE(cost, 0), COALESCE(provider_id, ''), sent_at
        FROM notifications
        WHERE party_id = ?
        ORDER BY sent_at DESC`, partyID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.PartyID, &n.Channel, &n.Template, &n.Status, &n.Cost, &n.ProviderID, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

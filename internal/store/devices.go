package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/halalscan/halalscan/internal/model"
)

// CreateDevice registers a new device and returns it.
func CreateDevice(ctx context.Context, db *sql.DB, label string) (*model.Device, error) {
	id := uuid.New().String()
	_, err := db.ExecContext(ctx,
		`INSERT INTO devices (id, label) VALUES (?, ?)`,
		id, label,
	)
	if err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}
	return GetDevice(ctx, db, id)
}

// GetDevice returns a device by ID, nil when unknown.
func GetDevice(ctx context.Context, db *sql.DB, id string) (*model.Device, error) {
	device := &model.Device{}
	var label sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, label, created_at, last_seen FROM devices WHERE id = ?`, id,
	).Scan(&device.ID, &label, &device.CreatedAt, &device.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting device: %w", err)
	}
	device.Label = label.String
	return device, nil
}

// TouchDevice updates a device's last-seen timestamp. Best-effort bookkeeping.
func TouchDevice(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE devices SET last_seen = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}
	return nil
}

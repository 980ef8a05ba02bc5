package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// Create inserts a new device.
	Create(ctx context.Context, d *Device) error

	// UpdateLastSeen sets the device's last-seen timestamp and marks it
	// online. The write is idempotent; callers don't need to check the
	// previous status. Returns ErrDeviceNotFound if the device does not exist.
	UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error

	// ListStaleOnline retrieves devices currently marked online whose
	// last-seen timestamp is older than the cutoff. Devices already offline
	// are never returned, which is what stops the sweep from re-flagging them.
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]Device, error)

	// MarkOffline transitions the given devices to offline in one batch update.
	MarkOffline(ctx context.Context, ids []string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, mac_address, plant_id, status, firmware_version, last_seen_at, created_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	status := d.Status
	if status == "" {
		status = StatusProvisioning
	}

	query := `
		INSERT INTO devices (id, mac_address, plant_id, status, firmware_version, last_seen_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		nullableString(d.MACAddress),
		nullableString(d.PlantID),
		string(status),
		nullableString(d.FirmwareVersion),
		nullableTime(d.LastSeenAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// UpdateLastSeen sets last_seen_at and marks the device online.
func (r *SQLiteRepository) UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	query := `UPDATE devices SET last_seen_at = ?, status = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		seenAt.UTC().Format(time.RFC3339), string(StatusOnline), id)
	if err != nil {
		return fmt.Errorf("updating device last seen: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ListStaleOnline retrieves online devices last seen before the cutoff.
func (r *SQLiteRepository) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE status = ? AND last_seen_at IS NOT NULL AND last_seen_at < ?
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query,
		string(StatusOnline), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying stale devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stale device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// MarkOffline transitions the given devices to offline in one batch update.
func (r *SQLiteRepository) MarkOffline(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf("UPDATE devices SET status = ? WHERE id IN (%s)", placeholders)

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(StatusOffline))
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking devices offline: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device row in deviceColumns order.
func scanDevice(row scanner) (*Device, error) {
	var d Device
	var mac, plantID, firmware, lastSeen sql.NullString
	var status, createdAt string

	if err := row.Scan(&d.ID, &mac, &plantID, &status, &firmware, &lastSeen, &createdAt); err != nil {
		return nil, err
	}

	d.Status = Status(status)
	if mac.Valid {
		d.MACAddress = &mac.String
	}
	if plantID.Valid {
		d.PlantID = &plantID.String
	}
	if firmware.Valid {
		d.FirmwareVersion = &firmware.String
	}
	if lastSeen.Valid {
		if ts, err := time.Parse(time.RFC3339, lastSeen.String); err == nil {
			d.LastSeenAt = &ts
		}
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		d.CreatedAt = ts
	}

	return &d, nil
}

// nullableString converts an optional string to a driver-friendly value.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullableTime converts an optional time to a driver-friendly value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Package capture journals raw vendor advertisements so that decoding can be
// replayed offline against new or changed variants.
package capture

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// timeLayout is fixed-width so seen_at text sorts in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

//go:embed sql/insert-sighting.sql
var insertSightingSQL string

//go:embed sql/get-sightings.sql
var getSightingsSQL string

//go:embed sql/get-addresses.sql
var getAddressesSQL string

//go:embed sql/delete-before.sql
var deleteBeforeSQL string

// Sighting is one advertisement that carried vendor service data, whether or
// not a variant accepted it.
type Sighting struct {
	ID          int64
	Address     string
	Name        string
	ServiceUUID string
	Payload     []byte
	RSSI        int16
	Accepted    bool
	Variant     string
	Reason      string
	SeenAt      time.Time
}

// AddressSummary aggregates the journal for one device address.
type AddressSummary struct {
	Address  string
	Total    int
	Accepted int
	LastSeen time.Time
}

type Repository interface {
	InsertSighting(ctx context.Context, s Sighting) error
	GetSightings(ctx context.Context, address string, limit int) ([]Sighting, error)
	GetAddresses(ctx context.Context) ([]AddressSummary, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertSighting(ctx context.Context, s Sighting) error {
	if s.Address == "" {
		return fmt.Errorf("sighting address is required")
	}
	if s.SeenAt.IsZero() {
		s.SeenAt = time.Now()
	}
	payload := s.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := r.db.ExecContext(ctx, insertSightingSQL,
		s.Address,
		s.Name,
		s.ServiceUUID,
		payload,
		s.RSSI,
		s.Accepted,
		s.Variant,
		s.Reason,
		s.SeenAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert sighting: %w", err)
	}
	return nil
}

// GetSightings returns the newest sightings first. address matches
// case-insensitively; empty returns every device.
func (r *repositoryImpl) GetSightings(ctx context.Context, address string, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 100
	}
	address = strings.ToUpper(strings.TrimSpace(address))
	rows, err := r.db.QueryContext(ctx, getSightingsSQL, address, address, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close sightings rows", "error", err)
		}
	}()

	var out []Sighting
	for rows.Next() {
		var (
			s      Sighting
			seenAt string
		)
		if err := rows.Scan(&s.ID, &s.Address, &s.Name, &s.ServiceUUID, &s.Payload, &s.RSSI, &s.Accepted, &s.Variant, &s.Reason, &seenAt); err != nil {
			return nil, err
		}
		if s.SeenAt, err = time.Parse(timeLayout, seenAt); err != nil {
			return nil, fmt.Errorf("sighting %d: parse seen_at %q: %w", s.ID, seenAt, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetAddresses(ctx context.Context) ([]AddressSummary, error) {
	rows, err := r.db.QueryContext(ctx, getAddressesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close addresses rows", "error", err)
		}
	}()

	var out []AddressSummary
	for rows.Next() {
		var (
			a        AddressSummary
			lastSeen string
		)
		if err := rows.Scan(&a.Address, &a.Total, &a.Accepted, &lastSeen); err != nil {
			return nil, err
		}
		if a.LastSeen, err = time.Parse(timeLayout, lastSeen); err != nil {
			return nil, fmt.Errorf("address %s: parse last_seen %q: %w", a.Address, lastSeen, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteBefore prunes sightings older than cutoff and returns how many went.
func (r *repositoryImpl) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteBeforeSQL, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete sightings: %w", err)
	}
	return res.RowsAffected()
}

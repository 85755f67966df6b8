// Package ticket defines the ticketing collaborator contract and a
// SQLite-backed implementation. Ticketing failures are recoverable: callers
// flag them in request state and continue.
package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"supportflow/pkg/logx"
)

// ErrTicketSystem wraps every storage failure so callers can treat the
// ticket system as a recoverable dependency.
var ErrTicketSystem = errors.New("ticket system unavailable")

// ErrTicketNotFound is returned when a ticket ID has no record.
var ErrTicketNotFound = errors.New("ticket not found")

// Ticket is one support ticket row.
type Ticket struct {
	ID           int
	CustomerName string
	Email        string
	Status       string
	Priority     string
	Notes        string
	UpdatedAt    time.Time
}

// Updater is the contract pipeline abilities use to mutate tickets.
type Updater interface {
	Update(ctx context.Context, id int, fields map[string]any) error
}

// updatableColumns maps accepted update fields to their columns. Fields
// outside this set are ignored rather than rejected.
var updatableColumns = map[string]string{
	"customer_name": "customer_name",
	"email":         "email",
	"status":        "status",
	"priority":      "priority",
	"notes":         "notes",
}

// Store is the SQLite-backed ticket system, sharing the persistence
// database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// NewStore wraps an open database. The tickets table is created by the
// persistence schema.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: logx.NewLogger("ticket"),
	}
}

// Ensure creates a ticket row for the given ID if none exists, returning the
// effective ticket ID. A zero ID allocates a fresh ticket.
func (s *Store) Ensure(ctx context.Context, id int, customerName, email, priority string) (int, error) {
	if id > 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO tickets (id, customer_name, email, priority)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			id, customerName, email, priority)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTicketSystem, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Debug("created ticket %d for %s", id, customerName)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (customer_name, email, priority)
		VALUES (?, ?, ?)`,
		customerName, email, priority)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTicketSystem, err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTicketSystem, err)
	}
	s.logger.Debug("created ticket %d for %s", newID, customerName)
	return int(newID), nil
}

// Get retrieves a ticket by ID.
func (s *Store) Get(ctx context.Context, id int) (*Ticket, error) {
	var t Ticket
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, email, status, priority, notes, updated_at
		FROM tickets WHERE id = ?`, id).
		Scan(&t.ID, &t.CustomerName, &t.Email, &t.Status, &t.Priority,
			&t.Notes, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTicketSystem, err)
	}
	return &t, nil
}

// Update applies the given fields to a ticket. Unknown fields are dropped;
// an update with no applicable fields is a no-op.
func (s *Store) Update(ctx context.Context, id int, fields map[string]any) error {
	cols := make([]string, 0, len(fields))
	for field := range fields {
		if _, ok := updatableColumns[field]; ok {
			cols = append(cols, field)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	sort.Strings(cols)

	assignments := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, field := range cols {
		assignments = append(assignments, updatableColumns[field]+" = ?")
		args = append(args, fmt.Sprintf("%v", fields[field]))
	}
	assignments = append(assignments, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE tickets SET "+strings.Join(assignments, ", ")+" WHERE id = ?",
		args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTicketSystem, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}

	s.logger.Debug("updated ticket %d: %s", id, strings.Join(cols, ", "))
	return nil
}

// CloseTicket marks a ticket closed.
func (s *Store) CloseTicket(ctx context.Context, id int) error {
	return s.Update(ctx, id, map[string]any{"status": "closed"})
}

// Package cardstore holds the authorization service's card database and
// access log.
package cardstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gocardgate/cardid"
)

var (
	// ErrNotFound is returned when a card does not exist.
	ErrNotFound = errors.New("card not found")

	// ErrExists is returned when adding a card that is already present.
	ErrExists = errors.New("card already exists")
)

// Card is one entry of the card database.
type Card struct {
	ID         cardid.ID `json:"id"`
	Name       string    `json:"name"`
	Authorized bool      `json:"authorized"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AccessEvent is one recorded authorization attempt. CardID is the request
// as received, which may not be a valid identifier.
type AccessEvent struct {
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	Authorized bool      `json:"authorized"`
	Remote     string    `json:"remote,omitempty"`
	At         time.Time `json:"timestamp"`
}

// Stats summarizes the database for the admin API.
type Stats struct {
	Cards          int        `json:"cards"`
	AuthorizedCard int        `json:"authorized_cards"`
	Accesses       int        `json:"accesses"`
	Granted        int        `json:"granted"`
	Denied         int        `json:"denied"`
	LastAccess     *time.Time `json:"last_access,omitempty"`
}

// Store is the card database.
type Store interface {
	Lookup(ctx context.Context, id cardid.ID) (Card, error)
	List(ctx context.Context) ([]Card, error)
	Add(ctx context.Context, c Card) (Card, error)
	Delete(ctx context.Context, id cardid.ID) error
	SetAuthorized(ctx context.Context, id cardid.ID, authorized bool) (Card, error)

	RecordAccess(ctx context.Context, ev AccessEvent) (AccessEvent, error)
	// RecentAccess returns up to limit events, newest first. limit <= 0
	// returns everything.
	RecentAccess(ctx context.Context, limit int) ([]AccessEvent, error)
	ClearAccess(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Config selects and configures the backend.
type Config struct {
	Type string `yaml:"type"` // "sqlite" (default) or "memory"
	Path string `yaml:"path"` // sqlite database file
	Seed bool   `yaml:"seed"` // insert DefaultCards into an empty database
}

// DefaultCards are seeded into an empty database: one administrator card
// and one card that is known but denied.
var DefaultCards = []Card{
	{ID: "0x1a2b3c4d", Name: "Admin card", Authorized: true},
	{ID: "0xabcdef12", Name: "Visitor card", Authorized: false},
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Type {
	case "memory":
		s = NewMemory()
	case "sqlite", "":
		s, err = OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown card store type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Seed {
		if err := Seed(ctx, s); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Seed adds DefaultCards when the store holds no cards.
func Seed(ctx context.Context, s Store) error {
	cards, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(cards) > 0 {
		return nil
	}
	for _, c := range DefaultCards {
		if _, err := s.Add(ctx, c); err != nil && !errors.Is(err, ErrExists) {
			return fmt.Errorf("seed %s: %w", c.ID, err)
		}
	}
	return nil
}

// prepareEvent fills the id and timestamp of a new event.
func prepareEvent(ev AccessEvent, now time.Time) AccessEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = now
	}
	ev.At = ev.At.UTC()
	return ev
}

package link

import (
	"context"
	"log"
	"time"

	"gocardgate/wait"
)

// Guardian makes sure the link is up before a transaction, re-establishing
// it within a bounded budget when it is not.
type Guardian struct {
	conn     Connectivity
	network  string
	secret   string
	attempts int
	interval time.Duration
}

// NewGuardian creates a Guardian over conn.
func NewGuardian(conn Connectivity, cfg Config) *Guardian {
	return &Guardian{
		conn:     conn,
		network:  cfg.Network,
		secret:   cfg.Secret,
		attempts: cfg.attempts(),
		interval: cfg.interval(),
	}
}

// Ensure returns true immediately when the link is up. Otherwise it starts
// association and re-checks every interval for up to attempts increments.
func (g *Guardian) Ensure(ctx context.Context) bool {
	if g.conn.IsConnected() {
		return true
	}

	log.Printf("Link down, associating with %q", g.network)
	if err := g.conn.BeginAssociation(g.network, g.secret); err != nil {
		log.Printf("Begin association: %v", err)
	}

	if wait.Until(ctx, g.interval, g.attempts, g.conn.IsConnected) {
		log.Println("Link up")
		return true
	}
	log.Printf("Link still down after %d checks", g.attempts)
	return false
}

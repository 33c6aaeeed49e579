package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically deletes rooms idle longer than TTL, mirroring the
// daily cleanup the durable side expects. Presence is untouched: a stale
// room with live connections just fails the next lookup.
type Janitor struct {
	Store    *Store
	TTL      time.Duration
	Interval time.Duration
}

// Run blocks until ctx is done, sweeping once per interval.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.Store.DeleteStaleRooms(ctx, j.TTL)
			if err != nil {
				log.Error().Err(err).Str("module", "store.janitor").Msg("stale room sweep")
				continue
			}
			if n > 0 {
				log.Info().Str("module", "store.janitor").Int64("deleted", n).Msg("stale rooms removed")
			}
		}
	}
}

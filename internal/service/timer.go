package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/critical-mass/internal/repository"
)

// TimerListener listens for Redis keyspace notifications on expired turn
// clock keys and resigns the seat that ran out of time. A polling fallback
// catches expirations when keyspace notifications are not configured.
type TimerListener struct {
	rdb      *redis.Client
	matchSvc *MatchService
	gameRepo repository.GameRepository
	cache    repository.GameCache
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *redis.Client, matchSvc *MatchService, gameRepo repository.GameRepository, cache repository.GameCache) *TimerListener {
	return &TimerListener{rdb: rdb, matchSvc: matchSvc, gameRepo: gameRepo, cache: cache}
}

// Start begins listening for expired key events and runs a polling fallback.
func (t *TimerListener) Start(ctx context.Context) {
	go t.listenKeyspace(ctx)
	t.pollExpiredClocks(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

// pollExpiredClocks periodically checks timed active games whose clock key
// has silently vanished.
func (t *TimerListener) pollExpiredClocks(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("Turn clock poller started (10s interval)")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Turn clock poller stopped")
			return
		case <-ticker.C:
			t.checkExpiredClocks(ctx)
		}
	}
}

// checkExpiredClocks finds timed active games with no live clock key.
func (t *TimerListener) checkExpiredClocks(ctx context.Context) {
	games, err := t.gameRepo.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active games")
		return
	}
	for _, g := range games {
		if g.TurnSeconds <= 0 {
			continue
		}
		deadline, err := t.cache.GetTimer(ctx, g.ID)
		if err != nil {
			log.Error().Err(err).Str("gameId", g.ID).Msg("Failed to read turn clock")
			continue
		}
		if !deadline.IsZero() {
			continue
		}
		log.Info().Str("gameId", g.ID).Msg("Poller found an expired turn clock")
		if err := t.matchSvc.HandleTimeout(ctx, g.ID); err != nil {
			log.Error().Err(err).Str("gameId", g.ID).Msg("Timeout handling failed from poller")
		}
	}
}

// handleExpiry processes an expired key. Only acts on game timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	if !strings.HasPrefix(key, "game:") || !strings.HasSuffix(key, ":timer") {
		return
	}
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return
	}
	gameID := parts[1]

	log.Info().Str("gameId", gameID).Msg("Turn clock expired")
	if err := t.matchSvc.HandleTimeout(ctx, gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Timeout handling failed after expiry")
	}
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimTTL bounds how long a crashed replica can hold a user's slot.
const claimTTL = 90 * time.Second

var ErrSessionActive = errors.New("registry: user already has a live session")

// Store tracks which user currently holds a live conversation. One
// claim per user across all replicas; claims expire unless renewed.
type Store struct {
	client *redis.Client
	log    *slog.Logger
}

func NewStore(client *redis.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, log: log.With("component", "registry")}
}

func key(userID string) string {
	return fmt.Sprintf("careervoice:live:%s", userID)
}

// Claim reserves the user's live slot for the given session. Returns
// ErrSessionActive when another session already holds it.
func (s *Store) Claim(ctx context.Context, userID, sessionID string) error {
	ok, err := s.client.SetNX(ctx, key(userID), sessionID, claimTTL).Result()
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	if !ok {
		return ErrSessionActive
	}
	return nil
}

// Heartbeat renews the claim while the conversation is alive. A renewal
// for a session that no longer owns the slot is ignored.
func (s *Store) Heartbeat(ctx context.Context, userID, sessionID string) error {
	val, err := s.client.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("heartbeat session: %w", err)
	}
	if val != sessionID {
		return nil
	}
	return s.client.Expire(ctx, key(userID), claimTTL).Err()
}

// Release frees the slot if the session still owns it.
func (s *Store) Release(ctx context.Context, userID, sessionID string) error {
	val, err := s.client.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	if val != sessionID {
		return nil
	}
	return s.client.Del(ctx, key(userID)).Err()
}

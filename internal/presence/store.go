package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relay-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey = "online_users"

	onlineTTL  = 5 * time.Minute
	offlineTTL = 24 * time.Hour
)

// Store writes presence transitions through to Redis so REST instances
// and restarts can see them. All writes are best-effort; the caller
// logs failures and moves on.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func statusKey(userID string) string {
	return fmt.Sprintf("user:%s:status", userID)
}

func (s *Store) SetOnline(ctx context.Context, userID string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
		"status":     "online",
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, statusKey(userID), onlineTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	slog.Debug("User set to online", "userID", userID)
	return nil
}

func (s *Store) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	pipe := s.client.Pipeline()
	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  lastSeen.Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, statusKey(userID), offlineTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set user offline: %w", err)
	}
	slog.Debug("User set to offline", "userID", userID)
	return nil
}

func (s *Store) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, onlineUsersKey).Result()
}

// Write applies a presence transition. Used by the lifecycle manager as
// the single write-through entry point.
func (s *Store) Write(ctx context.Context, update *models.StatusUpdate) error {
	if update.Status == "online" {
		return s.SetOnline(ctx, update.UserID)
	}
	lastSeen := time.Now()
	if update.LastSeen != nil {
		lastSeen = *update.LastSeen
	}
	return s.SetOffline(ctx, update.UserID, lastSeen)
}

package hours

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// storedHours is the JSON document kept under the shop's key.
type storedHours struct {
	Version   int64      `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
	Hours     []DayHours `json:"hours"`
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Store persists the weekly table in Redis with optimistic concurrency.
type Store struct {
	redis *redis.Client
	now   func() time.Time
}

// NewStore creates a business hours store.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("hours: redis client required")
	}
	return &Store{redis: redisClient, now: time.Now}
}

func (s *Store) key(shopID string) string {
	return fmt.Sprintf("shop:hours:%s", shopID)
}

// Load returns the stored table, or DefaultHours at version 0 when none is saved.
func (s *Store) Load(ctx context.Context, shopID string) (*Manager, error) {
	doc, err := s.read(ctx, s.redis, shopID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return newVersionedManager(DefaultHours(), 0, time.Time{}), nil
	}
	return newVersionedManager(doc.Hours, doc.Version, doc.UpdatedAt), nil
}

// Save validates hours and writes them if the stored version still equals
// expectedVersion. The new version is returned.
func (s *Store) Save(ctx context.Context, shopID string, hours []DayHours, expectedVersion int64) (int64, error) {
	if res := Validate(hours); !res.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHours, res.Errors)
	}

	key := s.key(shopID)
	var newVersion int64
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, shopID)
		if err != nil {
			return err
		}
		var currentVersion int64
		if current != nil {
			currentVersion = current.Version
		}
		if currentVersion != expectedVersion {
			return ErrVersionConflict
		}

		newVersion = currentVersion + 1
		data, err := json.Marshal(storedHours{
			Version:   newVersion,
			UpdatedAt: s.now().UTC(),
			Hours:     hours,
		})
		if err != nil {
			return fmt.Errorf("hours: marshal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return newVersion, nil
	case errors.Is(err, redis.TxFailedErr):
		return 0, ErrVersionConflict
	case errors.Is(err, ErrVersionConflict):
		return 0, err
	default:
		return 0, fmt.Errorf("hours: save: %w", err)
	}
}

func (s *Store) read(ctx context.Context, cmd getter, shopID string) (*storedHours, error) {
	data, err := cmd.Get(ctx, s.key(shopID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hours: get: %w", err)
	}
	var doc storedHours
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("hours: unmarshal: %w", err)
	}
	return &doc, nil
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

// ErrCartChanged is returned by Update when another request modified the
// session cart between the read and the write.
var ErrCartChanged = errors.New("cart was modified concurrently")

const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionRepository keeps one cart per session id in Redis. Every read or
// write slides the expiry forward.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{client: client, ttl: ttl}
}

// Load returns the session cart, or an empty store for unknown sessions.
func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*Store, error) {
	key := sessionKey(sessionID)

	data, err := r.client.GetEx(ctx, key, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	return decode(data)
}

func (r *SessionRepository) Save(ctx context.Context, sessionID string, store *Store) error {
	data, err := json.Marshal(store.Lines())
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

// Update loads the session cart, applies fn and writes the result back in a
// single optimistic transaction. When fn returns an error nothing is written.
func (r *SessionRepository) Update(ctx context.Context, sessionID string, fn func(*Store) error) (*Store, error) {
	key := sessionKey(sessionID)
	var result *Store

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		store := New()
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get cart: %w", err)
		default:
			if store, err = decode(data); err != nil {
				return err
			}
		}

		if err := fn(store); err != nil {
			return err
		}

		encoded, err := json.Marshal(store.Lines())
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = store
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrCartChanged
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func decode(data []byte) (*Store, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return New(lines...), nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

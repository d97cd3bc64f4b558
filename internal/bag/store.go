package bag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const bagKeyName = "bag"

// SessionID is the opaque handle a client session is identified by.
type SessionID string

type sessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SessionKey(sessionID, name string) string
}

// Store persists bags in session state. Every mutation reads the whole bag, changes it in
// memory and writes it back; concurrent writes for one session are last-write-wins.
type Store struct {
	sessions sessionStore
	ttl      time.Duration
}

// NewStore builds a bag store over the session backend.
func NewStore(sessions sessionStore, ttl time.Duration) (*Store, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Store{sessions: sessions, ttl: ttl}, nil
}

// Get returns the session's bag, or an empty bag when none is stored.
func (s *Store) Get(ctx context.Context, session SessionID) (Bag, error) {
	key, err := s.key(session)
	if err != nil {
		return nil, err
	}
	raw, err := s.sessions.Get(ctx, key)
	if err != nil {
		if pkgredis.IsMissing(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("load bag: %w", err)
	}
	b, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		if err := s.sessions.Expire(ctx, key, s.ttl); err != nil {
			return nil, fmt.Errorf("refresh bag ttl: %w", err)
		}
	}
	return b, nil
}

// Put replaces the session's bag. An empty bag clears the stored value.
func (s *Store) Put(ctx context.Context, session SessionID, b Bag) error {
	key, err := s.key(session)
	if err != nil {
		return err
	}
	if b.IsEmpty() {
		return s.sessions.Del(ctx, key)
	}
	encoded, err := Encode(b)
	if err != nil {
		return fmt.Errorf("encode bag: %w", err)
	}
	if err := s.sessions.Set(ctx, key, encoded, s.ttl); err != nil {
		return fmt.Errorf("store bag: %w", err)
	}
	return nil
}

// AddItem adds quantity units of productID (optionally of one size) and returns the new bag.
func (s *Store) AddItem(ctx context.Context, session SessionID, productID uuid.UUID, quantity int, size *string) (Bag, error) {
	return s.mutate(ctx, session, func(b Bag) error {
		return b.Add(productID, quantity, size)
	})
}

// SetItemQuantity replaces the quantity held for productID; zero or less removes it.
func (s *Store) SetItemQuantity(ctx context.Context, session SessionID, productID uuid.UUID, quantity int, size *string) (Bag, error) {
	return s.mutate(ctx, session, func(b Bag) error {
		return b.SetQuantity(productID, quantity, size)
	})
}

// RemoveItem deletes productID, or one of its sizes, from the bag.
func (s *Store) RemoveItem(ctx context.Context, session SessionID, productID uuid.UUID, size *string) (Bag, error) {
	return s.mutate(ctx, session, func(b Bag) error {
		return b.Remove(productID, size)
	})
}

// Clear drops the session's bag.
func (s *Store) Clear(ctx context.Context, session SessionID) error {
	key, err := s.key(session)
	if err != nil {
		return err
	}
	return s.sessions.Del(ctx, key)
}

func (s *Store) mutate(ctx context.Context, session SessionID, fn func(Bag) error) (Bag, error) {
	current, err := s.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.Put(ctx, session, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) key(session SessionID) (string, error) {
	id := strings.TrimSpace(string(session))
	if id == "" {
		return "", errors.New("session id is required")
	}
	return s.sessions.SessionKey(id, bagKeyName), nil
}

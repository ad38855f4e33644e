package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubIdempotencyStore struct {
	keys   map[string]bool
	setErr error
}

func (s *stubIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if s.keys[key] {
		return "1", nil
	}
	return "", errors.New("not found")
}

func (s *stubIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "pc:idempotency:" + scope + ":" + id
}

func (s *stubIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuardMarksAndReleases(t *testing.T) {
	guard, err := NewIdempotencyGuard(&stubIdempotencyStore{}, time.Hour, "stripe-webhook")
	if err != nil {
		t.Fatalf("setup guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery must not be seen: %v %v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil || !seen {
		t.Fatalf("replay must be seen: %v %v", seen, err)
	}

	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete marker: %v", err)
	}
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("released event must be retryable: %v %v", seen, err)
	}
}

func TestIdempotencyGuardScopesKeys(t *testing.T) {
	store := &stubIdempotencyStore{}
	stripeGuard, _ := NewIdempotencyGuard(store, time.Hour, "stripe-webhook")
	carrierGuard, _ := NewIdempotencyGuard(store, time.Hour, "lalamove-webhook")
	ctx := context.Background()

	if _, err := stripeGuard.CheckAndMark(ctx, "evt_shared"); err != nil {
		t.Fatalf("mark stripe event: %v", err)
	}
	seen, err := carrierGuard.CheckAndMark(ctx, "evt_shared")
	if err != nil || seen {
		t.Fatalf("carrier scope must not collide with stripe scope: %v %v", seen, err)
	}
}

func TestIdempotencyGuardValidation(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "scope"); err == nil {
		t.Fatalf("nil store must be rejected")
	}
	if _, err := NewIdempotencyGuard(&stubIdempotencyStore{}, time.Hour, ""); err == nil {
		t.Fatalf("empty scope must be rejected")
	}

	guard, _ := NewIdempotencyGuard(&stubIdempotencyStore{}, time.Hour, "scope")
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("empty event id must be rejected")
	}
}

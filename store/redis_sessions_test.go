package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/skillsenselab/identity/logger"
)

func newRedisSessions(t *testing.T) *RedisSessions {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessions(rdb, logger.NewDefault("test"))
}

func TestRedisSessions_RotateOutcomes(t *testing.T) {
	r := newRedisSessions(t)
	ctx := context.Background()

	userID := uuid.New()
	chain := uuid.New()
	rot0 := uuid.New()
	s := &RefreshSession{ChainID: chain, UserID: userID, RotationID: rot0, ExpiresAt: time.Now().Add(time.Hour)}
	if err := r.CreateRefreshSession(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	rot1 := uuid.New()
	outcome, err := r.RotateRefreshSession(ctx, chain, rot0, rot1, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateOK {
		t.Fatalf("expected RotateOK, got %v", outcome)
	}

	outcome, err = r.RotateRefreshSession(ctx, chain, rot0, uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateStale {
		t.Errorf("expected RotateStale for superseded marker, got %v", outcome)
	}

	outcome, err = r.RotateRefreshSession(ctx, uuid.New(), rot1, uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateMissing {
		t.Errorf("expected RotateMissing for unknown chain, got %v", outcome)
	}
}

func TestRedisSessions_DeleteChain(t *testing.T) {
	r := newRedisSessions(t)
	ctx := context.Background()

	userID := uuid.New()
	chain := uuid.New()
	rot := uuid.New()
	if err := r.CreateRefreshSession(ctx, &RefreshSession{ChainID: chain, UserID: userID, RotationID: rot, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.DeleteRefreshChain(ctx, chain); err != nil {
		t.Fatalf("delete: %v", err)
	}
	outcome, err := r.RotateRefreshSession(ctx, chain, rot, uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if outcome != RotateMissing {
		t.Errorf("expected RotateMissing after revocation, got %v", outcome)
	}

	// Deleting an absent chain is a no-op.
	if err := r.DeleteRefreshChain(ctx, uuid.New()); err != nil {
		t.Errorf("deleting absent chain must not error: %v", err)
	}
}

func TestRedisSessions_DeleteUserSessions(t *testing.T) {
	r := newRedisSessions(t)
	ctx := context.Background()

	userID := uuid.New()
	chains := make([]uuid.UUID, 3)
	rots := make([]uuid.UUID, 3)
	for i := range chains {
		chains[i] = uuid.New()
		rots[i] = uuid.New()
		s := &RefreshSession{ChainID: chains[i], UserID: userID, RotationID: rots[i], ExpiresAt: time.Now().Add(time.Hour)}
		if err := r.CreateRefreshSession(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := r.DeleteUserSessions(ctx, userID); err != nil {
		t.Fatalf("delete user sessions: %v", err)
	}
	for i := range chains {
		outcome, err := r.RotateRefreshSession(ctx, chains[i], rots[i], uuid.New(), time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if outcome != RotateMissing {
			t.Errorf("chain %d: expected RotateMissing, got %v", i, outcome)
		}
	}
}

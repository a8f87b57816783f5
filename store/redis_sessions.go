package store

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/logger"
)

// RedisSessions implements SessionStore on Redis. Deployments that scale the
// service horizontally use it instead of the database-backed session table
// so rotation checks never touch the primary store.
//
// Layout: one key per chain holding "userID:rotationID" with a TTL matching
// the refresh expiry, plus a per-user set of chain ids for bulk revocation.
type RedisSessions struct {
	rdb *goredis.Client
	log *logger.Logger
}

// compile-time assertion
var _ SessionStore = (*RedisSessions)(nil)

// NewRedisSessions creates a Redis-backed session store.
func NewRedisSessions(rdb *goredis.Client, log *logger.Logger) *RedisSessions {
	return &RedisSessions{rdb: rdb, log: log.WithComponent("redis-sessions")}
}

func chainKey(chainID uuid.UUID) string { return "refresh:chain:" + chainID.String() }
func userKey(userID uuid.UUID) string   { return "refresh:user:" + userID.String() }

// CreateRefreshSession records the rotation marker for a new chain.
func (r *RedisSessions) CreateRefreshSession(ctx context.Context, s *RefreshSession) error {
	val := s.UserID.String() + ":" + s.RotationID.String()
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, chainKey(s.ChainID), val, time.Until(s.ExpiresAt))
	pipe.SAdd(ctx, userKey(s.UserID), s.ChainID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Database(err)
	}
	return nil
}

// RotateRefreshSession advances the rotation marker with an optimistic WATCH
// transaction: concurrent rotations of the same chain serialize on the key,
// and exactly one presenter of a given marker wins.
func (r *RedisSessions) RotateRefreshSession(ctx context.Context, chainID, oldRotationID, newRotationID uuid.UUID, expiresAt time.Time) (RotateOutcome, error) {
	key := chainKey(chainID)
	outcome := RotateMissing

	txn := func(tx *goredis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if stderrors.Is(err, goredis.Nil) {
			outcome = RotateMissing
			return nil
		}
		if err != nil {
			return err
		}
		userID, rotationID, ok := splitChainValue(val)
		if !ok || rotationID != oldRotationID.String() {
			outcome = RotateStale
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, userID+":"+newRotationID.String(), time.Until(expiresAt))
			return nil
		})
		if err == nil {
			outcome = RotateOK
		}
		return err
	}

	// A concurrent write between GET and EXEC aborts the transaction;
	// retry a few times before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		err := r.rdb.Watch(ctx, txn, key)
		if err == nil {
			return outcome, nil
		}
		if !stderrors.Is(err, goredis.TxFailedErr) {
			return RotateMissing, errors.Database(err)
		}
	}
	// The chain was rotated under us: the presented marker is stale.
	return RotateStale, nil
}

// DeleteRefreshChain revokes a single rotation chain.
func (r *RedisSessions) DeleteRefreshChain(ctx context.Context, chainID uuid.UUID) error {
	key := chainKey(chainID)
	val, err := r.rdb.Get(ctx, key).Result()
	if stderrors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Database(err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if userID, _, ok := splitChainValue(val); ok {
		if uid, parseErr := uuid.Parse(userID); parseErr == nil {
			pipe.SRem(ctx, userKey(uid), chainID.String())
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Database(err)
	}
	return nil
}

// DeleteUserSessions revokes every rotation chain for the user.
func (r *RedisSessions) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	chains, err := r.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil && !stderrors.Is(err, goredis.Nil) {
		return errors.Database(err)
	}

	pipe := r.rdb.TxPipeline()
	for _, chain := range chains {
		pipe.Del(ctx, "refresh:chain:"+chain)
	}
	pipe.Del(ctx, userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Database(err)
	}
	return nil
}

func splitChainValue(val string) (userID, rotationID string, ok bool) {
	idx := strings.IndexByte(val, ':')
	if idx < 0 {
		return "", "", false
	}
	return val[:idx], val[idx+1:], true
}

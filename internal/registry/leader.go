package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// leaderTTL bounds how long a worker holds the game-loop leader lock
// before it must renew or lose it.
const leaderTTL = 15 * time.Second

// TryBecomeLeader attempts to acquire the leader lock for workerID. Only
// the current holder can renew it — that check lives in ExtendLeadership
// (a GET of the holder followed by a separate EXPIRE), not in this call.
func (r *Registry) TryBecomeLeader(ctx context.Context, workerID string) (bool, error) {
	return r.rdb.AcquireLock(ctx, keyLeaderLock, workerID, leaderTTL)
}

// ExtendLeadership refreshes the leader lock's TTL, but only if workerID is
// still the recorded holder — otherwise another node has already taken
// over and this node must stop ticking. A false, nil result means genuine
// loss of leadership (key expired or held by someone else); any other
// error means the check itself failed and the caller must not treat that
// as having lost leadership outright — a network blip during renewal is
// not the same thing as another node having won the lock.
func (r *Registry) ExtendLeadership(ctx context.Context, workerID string) (bool, error) {
	current, err := r.rdb.Raw().Get(ctx, keyLeaderLock).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if current != workerID {
		return false, nil
	}
	if err := r.rdb.Expire(ctx, keyLeaderLock, leaderTTL); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseLeadership gives up leadership early (e.g. on graceful shutdown),
// releasing the lock only if workerID still holds it.
func (r *Registry) ReleaseLeadership(ctx context.Context, workerID string) error {
	_, err := r.rdb.ReleaseLock(ctx, keyLeaderLock, workerID)
	return err
}

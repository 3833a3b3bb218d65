package registry

import (
	"context"
	"fmt"
	"strings"

	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

// shortCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const shortCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
const shortCodeLength = 5

// This generator spreads a monotonic counter across the alphabet with a
// double Knuth-multiplicative hash rather than sampling randomly — it is
// uniform and collision-robust because two numerically
// adjacent counter values land far apart in the 32^5 code space, whereas a
// naive RNG needs a birthday-bound retry budget to reach the same
// guarantee at this code length.
const (
	knuthMultiplier1 uint64 = 2654435761
	knuthMultiplier2 uint64 = 40503
)

func spreadCounter(n uint64) uint64 {
	h := n * knuthMultiplier1
	h ^= h >> 15
	h *= knuthMultiplier2
	h ^= h >> 13
	return h
}

func encodeBase32(n uint64) string {
	var b strings.Builder
	base := uint64(len(shortCodeAlphabet))
	for i := 0; i < shortCodeLength; i++ {
		b.WriteByte(shortCodeAlphabet[n%base])
		n /= base
	}
	return b.String()
}

// CreateShortCode allocates a fresh short code for roomID, retrying up to
// 10 times on collision. Uniqueness is enforced by a conditional
// hash-field insert (HSETNX), never a read-then-write.
func (r *Registry) CreateShortCode(ctx context.Context, roomID string) (string, error) {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		n, err := r.rdb.Incr(ctx, keyShortCodeCounter)
		if err != nil {
			return "", fmt.Errorf("registry: short code counter: %w", err)
		}
		code := encodeBase32(spreadCounter(uint64(n)))

		ok, err := r.rdb.HSetNX(ctx, keyShortCodes, code, roomID)
		if err != nil {
			return "", fmt.Errorf("registry: insert short code: %w", err)
		}
		if !ok {
			continue // collision, retry with the next counter value
		}
		if err := r.rdb.HSet(ctx, keyRoomShortCodes, roomID, code); err != nil {
			return "", fmt.Errorf("registry: record reverse short code: %w", err)
		}
		return code, nil
	}
	return "", fmt.Errorf("registry: failed to allocate short code for %s after %d attempts", roomID, maxAttempts)
}

// GetRoomIDByShortCode resolves a short code to a room id. A false, nil
// result means the code genuinely isn't allocated; any other error means
// the lookup itself failed.
func (r *Registry) GetRoomIDByShortCode(ctx context.Context, code string) (string, bool, error) {
	roomID, err := r.rdb.HGet(ctx, keyShortCodes, strings.ToUpper(code))
	if err == pkgredis.ErrKeyNotFound {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return roomID, true, nil
}

// GetShortCodeByRoomID resolves a room id to its short code, if any. A
// false, nil result means the room genuinely has no short code; any other
// error means the lookup itself failed.
func (r *Registry) GetShortCodeByRoomID(ctx context.Context, roomID string) (string, bool, error) {
	code, err := r.rdb.HGet(ctx, keyRoomShortCodes, roomID)
	if err == pkgredis.ErrKeyNotFound {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return code, true, nil
}

func (r *Registry) releaseShortCodeFor(ctx context.Context, roomID string) error {
	code, ok, err := r.GetShortCodeByRoomID(ctx, roomID)
	if err != nil || !ok {
		return nil
	}
	if err := r.rdb.HDel(ctx, keyShortCodes, code); err != nil {
		return err
	}
	return r.rdb.HDel(ctx, keyRoomShortCodes, roomID)
}

// Package testutil provides shared test fixtures for packages that talk to
// Redis, so each package's tests don't hand-roll their own miniredis setup.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pkgredis "github.com/arcaderun/roomrt/pkg/redis"
)

// NewRedisClient starts an in-process miniredis server and returns a
// wrapped client pointed at it. The server is stopped automatically when
// the test completes.
func NewRedisClient(t *testing.T) *pkgredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return pkgredis.Wrap(rdb)
}

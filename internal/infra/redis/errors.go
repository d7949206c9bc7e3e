package redis

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openctemio/console/pkg/domain/shared"
)

var (
	// ErrKeyNotFound is returned by Client.Get for a missing key.
	ErrKeyNotFound = fmt.Errorf("%w: redis key", shared.ErrNotFound)

	// ErrCacheMiss is returned by Cache.Get when nothing is cached.
	ErrCacheMiss = errors.New("cache miss")
)

// isMissing reports whether err is the driver's "no such key" reply.
func isMissing(err error) bool {
	return errors.Is(err, redis.Nil)
}

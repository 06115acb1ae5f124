package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited marks a store failure caused by throttling on the store side.
var ErrRateLimited = errors.New("session store rate limited")

// Postgres SQLSTATEs that indicate the server is refusing work because of load.
const (
	pgTooManyConnections         = "53300"
	pgConfigurationLimitExceeded = "53400"
)

// IsRateLimited reports whether err is a throttling-class failure from any
// supported store.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgTooManyConnections, pgConfigurationLimitExceeded:
			return true
		}
	}
	// LOADING: the server is still reading its dataset after a restart
	var redisErr redis.Error
	if errors.As(err, &redisErr) && strings.HasPrefix(redisErr.Error(), "LOADING") {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"too many r", "rate limit", "429", "max number of clients"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

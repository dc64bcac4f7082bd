package recon

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"github.com/bsm/redislock"
)

// AcquireInsurerUploadLock serializes uploads per insurer across instances.
// The external ledger has no row locking, so two concurrent uploads for the
// same insurer would race read-then-write; this lock is the mitigation. It is
// best-effort: without Redis configured the caller proceeds with
// last-write-wins semantics, which the ledger contract accepts.
func AcquireInsurerUploadLock(ctx context.Context, insurerName string, ttl time.Duration) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	key := "recon:upload:" + strings.ToLower(strings.TrimSpace(insurerName))
	return locker.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(2*time.Second), 15),
	})
}

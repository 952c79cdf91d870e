// Package liveness implements the per-peer liveness ticker, grounded on
// stdlib time.Timer used the same jittered-interval way connmgr.failed
// uses time.AfterFunc(multiplier*time.Second, ...) for retry backoff.
package liveness

import (
	"context"
	"math/rand"
	"time"

	"github.com/haskoin-go/peerd/pkg/peer"
)

// Run asks check(mb) at pseudo-random intervals drawn uniformly from
// [¾·timeout, timeout], until ctx is cancelled.
func Run(ctx context.Context, mb *peer.Mailbox, timeout time.Duration, check func(*peer.Mailbox)) {
	for {
		wait := jitter(timeout)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			check(mb)
		}
	}
}

// jitter draws a duration uniformly from [¾·d, d].
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	lo := d * 3 / 4
	span := d - lo
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(span)))
}

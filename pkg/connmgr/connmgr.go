// Package connmgr implements the Connect Loop: maintains
// connected < max_peers by sampling KnownAddresses and launching children.
// Grounded directly on connmgr.Connmgr (pkg/connmgr/connmgr.go):
// its jittered-sleep loop and "try, and if busy/known drop retry" shape,
// generalized from a single outstanding connection to a max_peers-bounded
// sampling loop.
package connmgr

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/haskoin-go/peerd/pkg/addrmgr"
)

const (
	minSleep = 100 * time.Millisecond
	maxSleep = 5 * time.Second
)

// Deps are the collaborators the Connect Loop needs from the manager,
// kept as a small interface so connmgr stays decoupled from pkg/manager.
type Deps struct {
	Known        *addrmgr.Manager
	OnlineCount  func() int
	IsOnline     func(addr string) bool
	Connect      func(addr *net.TCPAddr)
	Discover     func(ctx context.Context)
	MaxPeers     int
}

// Run is the Connect Loop's infinite loop: random sleep
// between iterations, then a single sampling step, until ctx is cancelled.
func Run(ctx context.Context, d Deps) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitterSleep()):
		}
		step(ctx, d)
	}
}

// step performs one Connect Loop iteration.
func step(ctx context.Context, d Deps) {
	if d.OnlineCount() >= d.MaxPeers {
		return
	}
	for {
		addr, ok := d.Known.Sample()
		if !ok {
			if d.Known.Len() == 0 && d.Discover != nil {
				d.Discover(ctx)
			}
			addr, ok = d.Known.Sample()
			if !ok {
				return
			}
		}
		if d.IsOnline(addr.String()) {
			// Already connected to this address; drop it and keep
			// sampling.
			continue
		}
		d.Connect(addr)
		return
	}
}

func jitterSleep() time.Duration {
	span := maxSleep - minSleep
	return minSleep + time.Duration(rand.Int63n(int64(span)))
}

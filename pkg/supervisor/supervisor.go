// Package supervisor implements the parent component that tracks child
// tasks and notifies the manager on any child termination. Grounded on
// connmgr.Connmgr's launch/track shape (pkg/connmgr/connmgr.go's
// failed/connected/pending bookkeeping), generalized from connection-only
// children to arbitrary supervised functions via context.Context
// cancellation.
package supervisor

import (
	"context"

	"github.com/haskoin-go/peerd/pkg/peer"
	"go.uber.org/zap"
)

// Supervisor launches children and reports their deaths to a single
// callback: on any child death, it posts a PeerDied notification to the
// manager.
type Supervisor struct {
	log     *zap.Logger
	onDeath func(task *peer.TaskHandle, err error)
}

// New creates a Supervisor that reports every child death via onDeath.
func New(log *zap.Logger, onDeath func(task *peer.TaskHandle, err error)) *Supervisor {
	return &Supervisor{log: log, onDeath: onDeath}
}

// Launch starts run as a supervised child of parent and returns its task
// handle immediately; run's return value (nil or not) is always reported
// to onDeath once run returns. Unexpected task deaths are never fatal to
// the supervisor itself — they simply propagate to the callback.
func (s *Supervisor) Launch(parent context.Context, run func(ctx context.Context) error) *peer.TaskHandle {
	ctx, cancel := context.WithCancel(parent)
	handle := peer.NewTaskHandle(cancel)
	go func() {
		err := run(ctx)
		cancel()
		s.onDeath(handle, err)
	}()
	return handle
}

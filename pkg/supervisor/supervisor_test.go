package supervisor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haskoin-go/peerd/pkg/peer"
	"github.com/haskoin-go/peerd/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLaunchReportsNilOnCleanReturn(t *testing.T) {
	died := make(chan error, 1)
	var gotTask *peer.TaskHandle
	sup := supervisor.New(zap.NewNop(), func(task *peer.TaskHandle, err error) {
		gotTask = task
		died <- err
	})

	handle := sup.Launch(context.Background(), func(ctx context.Context) error { return nil })

	select {
	case err := <-died:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected onDeath to fire")
	}
	assert.Same(t, handle, gotTask)
}

func TestLaunchReportsTheReturnedError(t *testing.T) {
	boom := errors.New("boom")
	died := make(chan error, 1)
	sup := supervisor.New(zap.NewNop(), func(task *peer.TaskHandle, err error) { died <- err })

	sup.Launch(context.Background(), func(ctx context.Context) error { return boom })

	select {
	case err := <-died:
		assert.Equal(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("expected onDeath to fire")
	}
}

func TestLaunchCancellationStopsTheChild(t *testing.T) {
	died := make(chan error, 1)
	sup := supervisor.New(zap.NewNop(), func(task *peer.TaskHandle, err error) { died <- err })

	handle := sup.Launch(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	handle.Cancel()

	select {
	case err := <-died:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected onDeath to fire after cancellation")
	}
}

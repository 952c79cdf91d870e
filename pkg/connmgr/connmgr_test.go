package connmgr

import (
	"context"
	"net"
	"testing"

	"github.com/haskoin-go/peerd/pkg/addrmgr"
	"github.com/stretchr/testify/assert"
)

func tcpAddr(t *testing.T, s string) *net.TCPAddr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestStepSkipsSamplingWhenAtMaxPeers(t *testing.T) {
	known := addrmgr.New()
	known.Add(tcpAddr(t, "127.0.0.1:1"))

	connects := 0
	step(context.Background(), Deps{
		Known:       known,
		MaxPeers:    1,
		OnlineCount: func() int { return 1 },
		IsOnline:    func(string) bool { return false },
		Connect:     func(*net.TCPAddr) { connects++ },
	})

	assert.Zero(t, connects, "already at MaxPeers, step must never dial")
	assert.Equal(t, 1, known.Len(), "the known address must survive untouched")
}

func TestStepConnectsToASampledAddress(t *testing.T) {
	known := addrmgr.New()
	known.Add(tcpAddr(t, "127.0.0.1:1"))

	var connectedTo *net.TCPAddr
	step(context.Background(), Deps{
		Known:       known,
		MaxPeers:    8,
		OnlineCount: func() int { return 0 },
		IsOnline:    func(string) bool { return false },
		Connect:     func(a *net.TCPAddr) { connectedTo = a },
	})

	if assert.NotNil(t, connectedTo) {
		assert.Equal(t, "127.0.0.1:1", connectedTo.String())
	}
	assert.Equal(t, 0, known.Len(), "a sampled address is popped from the pool")
}

func TestStepSkipsAlreadyOnlineAddressesAndRetries(t *testing.T) {
	known := addrmgr.New()
	known.Add(tcpAddr(t, "127.0.0.1:1"), tcpAddr(t, "127.0.0.1:2"))

	var connectedTo string
	step(context.Background(), Deps{
		Known:       known,
		MaxPeers:    8,
		OnlineCount: func() int { return 0 },
		IsOnline:    func(addr string) bool { return addr == "127.0.0.1:1" },
		Connect:     func(a *net.TCPAddr) { connectedTo = a.String() },
	})

	assert.Equal(t, "127.0.0.1:2", connectedTo, "the already-online address must be dropped in favor of the other")
}

func TestStepInvokesDiscoverWhenPoolIsEmpty(t *testing.T) {
	known := addrmgr.New()

	discovered := false
	step(context.Background(), Deps{
		Known:       known,
		MaxPeers:    8,
		OnlineCount: func() int { return 0 },
		IsOnline:    func(string) bool { return false },
		Connect:     func(*net.TCPAddr) {},
		Discover:    func(context.Context) { discovered = true },
	})

	assert.True(t, discovered, "an empty pool must trigger Discover")
}

func TestStepNoOpWhenPoolEmptyAndNoDiscoverConfigured(t *testing.T) {
	known := addrmgr.New()

	connected := false
	step(context.Background(), Deps{
		Known:       known,
		MaxPeers:    8,
		OnlineCount: func() int { return 0 },
		IsOnline:    func(string) bool { return false },
		Connect:     func(*net.TCPAddr) { connected = true },
	})

	assert.False(t, connected)
}

// Package addrmgr implements KnownAddresses: the pool of endpoints
// discovered but not yet dialed. Grounded directly on pkg/addrmgr.Addrmgr
// (sync.RWMutex-guarded maps, an IPPort-keyed dedup index, modify-then-store
// failure accounting) generalized from a three-way Good/Bad/Unconnected
// split into a simpler single known-pool contract, while keeping the
// original decay policy (maxTries/maxFailures) as a discovery-aging
// feature. The pool itself is capped by an LRU cache so a chatty or
// malicious peer's Addr gossip can't grow it without bound.
package addrmgr

import (
	"context"
	"math/rand"
	"net"
	"sync"

	"github.com/haskoin-go/peerd/pkg/config"
	"github.com/haskoin-go/peerd/pkg/resolver"
	lru "github.com/hashicorp/golang-lru"
)

const (
	// maxDialFailures mirrors addrmgr's maxTries: after this many failed
	// dial attempts an address is dropped rather than retried forever.
	maxDialFailures = 5

	// maxKnownAddrs bounds the pool: past this many entries, the least
	// recently touched address is evicted to make room.
	maxKnownAddrs = 4096
)

// Manager is the KnownAddresses set plus the Static/Seeds/Gossip discovery
// sources that feed it.
type Manager struct {
	mtx      sync.Mutex
	known    *lru.Cache // key: addr.String(), value: *net.TCPAddr
	failures map[string]int
}

// New creates an empty Manager.
func New() *Manager {
	c, err := lru.New(maxKnownAddrs)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// maxKnownAddrs never is.
		panic(err)
	}
	return &Manager{
		known:    c,
		failures: make(map[string]int),
	}
}

// Add inserts addresses into the known pool, silently ignoring duplicates.
// Past maxKnownAddrs the least recently added/touched entry is evicted.
func (m *Manager) Add(addrs ...*net.TCPAddr) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, a := range addrs {
		if a == nil {
			continue
		}
		m.known.Add(a.String(), a)
	}
}

// Remove drops an address from the known pool: called when it is selected
// for a dial attempt or turns out to already be represented in the online
// registry.
func (m *Manager) Remove(addr string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.known.Remove(addr)
}

// Fail records a dial failure for addr. Past maxDialFailures the address
// is dropped from the known pool for good.
func (m *Manager) Fail(addr string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.failures[addr]++
	if m.failures[addr] >= maxDialFailures {
		m.known.Remove(addr)
		delete(m.failures, addr)
	}
}

// Len reports how many addresses are currently known.
func (m *Manager) Len() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.known.Len()
}

// Sample pops one random known address, or ok=false if the pool is empty.
func (m *Manager) Sample() (addr *net.TCPAddr, ok bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	keys := m.known.Keys()
	if len(keys) == 0 {
		return nil, false
	}
	key := keys[rand.Intn(len(keys))]
	v, ok := m.known.Peek(key)
	if !ok {
		return nil, false
	}
	m.known.Remove(key)
	return v.(*net.TCPAddr), true
}

// Discover runs the Static + Seeds discovery sources and
// merges their results into the known pool. isOnline is consulted so that
// addresses already represented in the online registry are not re-added.
func (m *Manager) Discover(ctx context.Context, cfg config.Config, isOnline func(string) bool) {
	for _, s := range cfg.StaticPeers {
		for _, a := range resolver.Resolve(ctx, s, cfg.Network.DefaultPort) {
			if !isOnline(a.String()) {
				m.Add(a)
			}
		}
	}
	if !cfg.Discover {
		return
	}
	for _, a := range resolver.ResolveSeeds(ctx, cfg.Network.Seeds, cfg.Network.DefaultPort) {
		if !isOnline(a.String()) {
			m.Add(a)
		}
	}
}

// AddGossip feeds addresses learned from a connected peer's Addrs message
// into the known pool, skipping any already online.
func (m *Manager) AddGossip(addrs []*net.TCPAddr, isOnline func(string) bool) {
	for _, a := range addrs {
		if !isOnline(a.String()) {
			m.Add(a)
		}
	}
}

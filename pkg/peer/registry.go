package peer

import (
	"net"
	"sort"
	"sync"
)

// Registry is the Online-Peer Registry: a transactional container whose
// operations are atomic with respect to each other, and whose stored
// sequence is re-sorted and de-duplicated after every modification.
// Grounded on Addrmgr's shape (sync.RWMutex guarding plain maps, atomic
// modify-then-store), generalized with a sorted-slice view on top of the
// mailbox-keyed index — a correctness shortcut acceptable for a small
// peer count.
type Registry struct {
	mtx    sync.RWMutex
	byMB   map[*Mailbox]*OnlinePeer
	sorted []*OnlinePeer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMB: make(map[*Mailbox]*OnlinePeer)}
}

// resort re-sorts and de-duplicates the cached view; callers must hold
// r.mtx for writing.
func (r *Registry) resort() {
	out := make([]*OnlinePeer, 0, len(r.byMB))
	for _, p := range r.byMB {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MedianPing() < out[j].MedianPing()
	})
	r.sorted = out
}

// FindByMailbox returns the peer with the given mailbox identity, if any.
func (r *Registry) FindByMailbox(m *Mailbox) (*OnlinePeer, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	p, ok := r.byMB[m]
	return p, ok
}

// FindByTask returns the peer with the given task identity, if any.
func (r *Registry) FindByTask(t *TaskHandle) (*OnlinePeer, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, p := range r.byMB {
		if p.Task == t {
			return p, true
		}
	}
	return nil, false
}

// FindByAddress returns the peer at the given socket endpoint, if any.
func (r *Registry) FindByAddress(addr *net.TCPAddr) (*OnlinePeer, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, p := range r.byMB {
		if p.Address.String() == addr.String() {
			return p, true
		}
	}
	return nil, false
}

// HasNonce reports whether any online peer was sent the given outbound
// nonce — used to detect self-connects.
func (r *Registry) HasNonce(nonce uint64) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, p := range r.byMB {
		if p.Nonce == nonce {
			return true
		}
	}
	return false
}

// Insert inserts op, replacing any existing entry with the same mailbox.
// Post-condition: the stored sequence is de-duplicated and sorted.
func (r *Registry) Insert(op *OnlinePeer) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.byMB[op.Mailbox] = op
	r.resort()
}

// Modify applies f to the peer identified by m and reinserts it; a no-op
// if the peer is absent.
func (r *Registry) Modify(m *Mailbox, f func(*OnlinePeer)) (ok bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	p, found := r.byMB[m]
	if !found {
		return false
	}
	f(p)
	r.resort()
	return true
}

// Remove removes every entry with the given mailbox.
func (r *Registry) Remove(m *Mailbox) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	delete(r.byMB, m)
	r.resort()
}

// HasAddress reports whether an online peer already occupies addr.
func (r *Registry) HasAddress(addr string) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, p := range r.byMB {
		if p.Address.String() == addr {
			return true
		}
	}
	return false
}

// Len reports the number of online peers.
func (r *Registry) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.byMB)
}

// Snapshot returns the sorted, de-duplicated view of every online peer.
func (r *Registry) Snapshot() []*OnlinePeer {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]*OnlinePeer, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Connected returns only the connected peers, sorted by median ping.
func (r *Registry) Connected() []*OnlinePeer {
	all := r.Snapshot()
	out := make([]*OnlinePeer, 0, len(all))
	for _, p := range all {
		if p.Connected() {
			out = append(out, p)
		}
	}
	return out
}

// Package peer implements the OnlinePeer entity and the Online-Peer
// Registry, plus the handshake state machine. Grounded on
// pkg/addrmgr.Addrmgr's shape (mutex-guarded maps, atomic read-modify-write)
// generalized from per-address stats to per-peer connection state, and on
// pkg/network/tcp_peer_test.go's Handshaked()/HandleVersion()/
// HandleVersionAck() vocabulary for the handshake edge.
package peer

import (
	"net"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/haskoin-go/peerd/pkg/wire/payload"
)

// maxPings is the cap on remembered round-trip times.
const maxPings = 11

// defaultMedianPing is substituted for peers with no recorded pings when
// sorting the registry.
const defaultMedianPing = 60 * time.Second

// Mailbox is the opaque, comparable identity used to address a peer task.
// Two Mailbox values are equal iff they are the same instance; it also
// carries the outbound send queue the manager uses for fire-and-forget
// delivery.
type Mailbox struct {
	ID  uuid.UUID
	out chan payload.Message
}

// NewMailbox allocates a fresh mailbox with a bounded outbound queue.
func NewMailbox() *Mailbox {
	return &Mailbox{ID: uuid.New(), out: make(chan payload.Message, 32)}
}

// Send enqueues msg for delivery to the peer task. It never blocks: a full
// queue means the peer task is wedged, and the manager must never suspend
// on a peer.
func (m *Mailbox) Send(msg payload.Message) (delivered bool) {
	select {
	case m.out <- msg:
		return true
	default:
		return false
	}
}

// Outbox exposes the receive side for the peer task's I/O loop.
func (m *Mailbox) Outbox() <-chan payload.Message { return m.out }

// TaskHandle is the opaque, comparable identity of a supervised peer task,
// used to look a peer up when the supervisor reports a death.
type TaskHandle struct {
	ID     uuid.UUID
	Cancel func()
}

// NewTaskHandle allocates a task handle bound to a cancellation function.
func NewTaskHandle(cancel func()) *TaskHandle {
	return &TaskHandle{ID: uuid.New(), Cancel: cancel}
}

// OutstandingPing records the single in-flight ping a peer may have.
type OutstandingPing struct {
	SentAt time.Time
	Nonce  uint64
}

// OnlinePeer is the manager-side record for a live (or dialing) peer.
type OnlinePeer struct {
	Address *net.TCPAddr
	Mailbox *Mailbox
	Task    *TaskHandle

	Nonce          uint64
	VerAckReceived bool
	PeerVersion    *payload.Version

	Pings           []time.Duration
	OutstandingPing *OutstandingPing

	ConnectTime  time.Time
	TickledAt    time.Time
	DisconnectAt time.Time

	// Busy is held by the peer task while it is doing its initial
	// connection I/O; the liveness monitor skips a busy peer.
	Busy bool

	// announced records whether PeerConnected has already fired for this
	// peer's lifetime, enforcing idempotence
	// across the Version/VerAck arrival orders.
	announced bool
}

// Connected is the derived invariant: connected iff a VerAck has been
// received and a Version has been recorded.
func (p *OnlinePeer) Connected() bool {
	return p.VerAckReceived && p.PeerVersion != nil
}

// Announced reports whether PeerConnected has already fired for this peer.
func (p *OnlinePeer) Announced() bool { return p.announced }

// MarkAnnounced records that PeerConnected has fired; idempotent.
func (p *OnlinePeer) MarkAnnounced() { p.announced = true }

// ApplyVersion records the remote's Version payload and reports whether
// this caused the connected edge to flip false→true.
func (p *OnlinePeer) ApplyVersion(v *payload.Version) (becameConnected bool) {
	was := p.Connected()
	p.PeerVersion = v
	return !was && p.Connected()
}

// ApplyVerAck records the VerAck and reports whether this caused the
// connected edge to flip false→true.
func (p *OnlinePeer) ApplyVerAck() (becameConnected bool) {
	was := p.Connected()
	p.VerAckReceived = true
	return !was && p.Connected()
}

// RecordPong matches an inbound Pong against the outstanding ping and, on
// a match, appends the computed RTT to Pings, trims to the maxPings most
// recent entries, sorts the retained window ascending, and clears
// OutstandingPing, returning the observed RTT. A mismatched nonce is a
// silent no-op and reports matched=false.
func (p *OnlinePeer) RecordPong(nonce uint64, now time.Time) (matched bool, rtt time.Duration) {
	if p.OutstandingPing == nil || p.OutstandingPing.Nonce != nonce {
		return false, 0
	}
	rtt = now.Sub(p.OutstandingPing.SentAt)
	p.Pings = append(p.Pings, rtt)
	if len(p.Pings) > maxPings {
		p.Pings = p.Pings[len(p.Pings)-maxPings:]
	}
	sort.Slice(p.Pings, func(i, j int) bool { return p.Pings[i] < p.Pings[j] })
	p.OutstandingPing = nil
	return true, rtt
}

// MedianPing returns the median of recorded RTTs, or defaultMedianPing if
// none have been recorded yet.
func (p *OnlinePeer) MedianPing() time.Duration {
	if len(p.Pings) == 0 {
		return defaultMedianPing
	}
	return p.Pings[len(p.Pings)/2]
}

// Tickle updates the peer's last-activity timestamp.
func (p *OnlinePeer) Tickle(now time.Time) { p.TickledAt = now }

package peer_test

import (
	"sort"
	"testing"
	"time"

	"github.com/haskoin-go/peerd/pkg/peer"
	"github.com/haskoin-go/peerd/pkg/wire/payload"
	"github.com/haskoin-go/peerd/pkg/wire/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeVersionThenVerAck(t *testing.T) {
	op := &peer.OnlinePeer{}
	require.False(t, op.Connected())

	became := op.ApplyVersion(&payload.Version{Services: protocol.NodeNetwork})
	assert.False(t, became, "not connected until VerAck too")
	assert.False(t, op.Connected())

	became = op.ApplyVerAck()
	assert.True(t, became, "VerAck after Version completes the handshake")
	assert.True(t, op.Connected())
}

func TestHandshakeVerAckThenVersion(t *testing.T) {
	op := &peer.OnlinePeer{}

	became := op.ApplyVerAck()
	assert.False(t, became)
	assert.False(t, op.Connected())

	became = op.ApplyVersion(&payload.Version{Services: protocol.NodeNetwork})
	assert.True(t, became, "Version after VerAck completes the handshake")
	assert.True(t, op.Connected())
}

func TestAnnouncedIsIdempotent(t *testing.T) {
	op := &peer.OnlinePeer{}
	assert.False(t, op.Announced())
	op.MarkAnnounced()
	assert.True(t, op.Announced())
	op.MarkAnnounced()
	assert.True(t, op.Announced())
}

func TestRecordPongMatch(t *testing.T) {
	op := &peer.OnlinePeer{OutstandingPing: &peer.OutstandingPing{SentAt: time.Now(), Nonce: 42}}
	matched, rtt := op.RecordPong(42, time.Now().Add(50*time.Millisecond))
	assert.True(t, matched)
	assert.True(t, rtt > 0)
	assert.Nil(t, op.OutstandingPing)
	assert.Len(t, op.Pings, 1)
}

func TestRecordPongNonceMismatch(t *testing.T) {
	op := &peer.OnlinePeer{OutstandingPing: &peer.OutstandingPing{SentAt: time.Now(), Nonce: 42}}
	matched, rtt := op.RecordPong(99, time.Now())
	assert.False(t, matched)
	assert.Zero(t, rtt)
	assert.NotNil(t, op.OutstandingPing, "a mismatched pong must not clear the outstanding ping")
}

func TestRecordPongWithoutOutstanding(t *testing.T) {
	op := &peer.OnlinePeer{}
	matched, _ := op.RecordPong(1, time.Now())
	assert.False(t, matched)
}

func TestMedianPingDefaultsWhenEmpty(t *testing.T) {
	op := &peer.OnlinePeer{}
	assert.Equal(t, 60*time.Second, op.MedianPing())
}

func TestMedianPingCapsAtMaxPings(t *testing.T) {
	op := &peer.OnlinePeer{OutstandingPing: &peer.OutstandingPing{SentAt: time.Now(), Nonce: 1}}
	base := time.Now()
	for i := 0; i < 20; i++ {
		op.OutstandingPing = &peer.OutstandingPing{SentAt: base, Nonce: uint64(i)}
		_, _ = op.RecordPong(uint64(i), base.Add(time.Duration(i+1)*time.Millisecond))
	}
	assert.LessOrEqual(t, len(op.Pings), 11)
}

// TestRecordPongTrimsByRecencyNotByValue guards against truncating the
// sorted slice by value, which would silently drop a degraded (larger)
// RTT in favor of retaining small, stale ones.
func TestRecordPongTrimsByRecencyNotByValue(t *testing.T) {
	op := &peer.OnlinePeer{}
	base := time.Now()

	// 11 small RTTs: 1ms..11ms.
	for i := 1; i <= 11; i++ {
		op.OutstandingPing = &peer.OutstandingPing{SentAt: base, Nonce: uint64(i)}
		_, _ = op.RecordPong(uint64(i), base.Add(time.Duration(i)*time.Millisecond))
	}
	require.Len(t, op.Pings, 11)

	// A 12th, much larger RTT must evict the oldest (1ms) entry, not get
	// sorted to the end and truncated away.
	op.OutstandingPing = &peer.OutstandingPing{SentAt: base, Nonce: 12}
	_, _ = op.RecordPong(12, base.Add(100*time.Millisecond))

	require.Len(t, op.Pings, 11)
	assert.NotContains(t, op.Pings, time.Millisecond, "oldest RTT must be evicted, not the largest")
	assert.Contains(t, op.Pings, 100*time.Millisecond, "the most recent RTT must survive the trim")
	assert.True(t, sort.SliceIsSorted(op.Pings, func(i, j int) bool { return op.Pings[i] < op.Pings[j] }))
}

func TestMailboxSendDoesNotBlockWhenFull(t *testing.T) {
	mb := peer.NewMailbox()
	delivered := true
	for i := 0; i < 64; i++ {
		if !mb.Send(&payload.VerAck{}) {
			delivered = false
			break
		}
	}
	assert.False(t, delivered, "mailbox send must eventually refuse once its queue is full")
}

func TestTickleUpdatesTimestamp(t *testing.T) {
	op := &peer.OnlinePeer{}
	now := time.Now()
	op.Tickle(now)
	assert.Equal(t, now, op.TickledAt)
}

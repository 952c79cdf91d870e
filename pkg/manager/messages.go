package manager

import (
	"net"

	"github.com/haskoin-go/peerd/pkg/peer"
	"github.com/haskoin-go/peerd/pkg/wire/payload"
)

// mailboxMsg is the sealed set of messages the actor's single mailbox
// accepts.
type mailboxMsg interface{ isMailboxMsg() }

type msgManagerBest struct{ height uint32 }
type msgConnect struct{ addr *net.TCPAddr }
type msgPeerVersion struct {
	mb *peer.Mailbox
	v  *payload.Version
}
type msgPeerVerAck struct{ mb *peer.Mailbox }
type msgPeerPing struct {
	mb    *peer.Mailbox
	nonce uint64
}
type msgPeerPong struct {
	mb    *peer.Mailbox
	nonce uint64
}
type msgPeerAddrs struct {
	mb    *peer.Mailbox
	addrs []*net.TCPAddr
}
type msgPeerTickle struct{ mb *peer.Mailbox }
type msgCheckPeer struct{ mb *peer.Mailbox }
type msgPeerDied struct {
	task *peer.TaskHandle
	err  error
}

func (msgManagerBest) isMailboxMsg()  {}
func (msgConnect) isMailboxMsg()      {}
func (msgPeerVersion) isMailboxMsg()  {}
func (msgPeerVerAck) isMailboxMsg()   {}
func (msgPeerPing) isMailboxMsg()     {}
func (msgPeerPong) isMailboxMsg()     {}
func (msgPeerAddrs) isMailboxMsg()    {}
func (msgPeerTickle) isMailboxMsg()   {}
func (msgCheckPeer) isMailboxMsg()    {}
func (msgPeerDied) isMailboxMsg()     {}

// Event is published on Connect/Disconnect edges.
type Event interface{ isEvent() }

// PeerConnected fires at most once per peer lifetime, at the ¬connected →
// connected edge.
type PeerConnected struct{ Peer *peer.OnlinePeer }

// PeerDisconnected fires only if PeerConnected previously fired.
type PeerDisconnected struct{ Peer *peer.OnlinePeer }

func (PeerConnected) isEvent()    {}
func (PeerDisconnected) isEvent() {}

// PeerMessage is published, for upstream consumers, for each inbound
// Version, VerAck, Ping, Pong and Addr handled for a peer still in the
// registry. A Version rejected during the handshake is not published, and
// GetAddr never reaches the manager.
type PeerMessage struct {
	Peer *peer.OnlinePeer
	Msg  payload.Message
}

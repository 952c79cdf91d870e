// Package manager implements the Peer Manager Actor: the
// single-consumer mailbox that serializes all state mutation and
// dispatches to the registry, handshake, liveness and discovery
// components. Grounded on _pkg.dev/server.Server's module wiring and
// stopCh-driven shutdown, generalized into a typed mailbox message table,
// replacing its looser OnConnection/OnAccept callbacks with explicit
// message types.
package manager

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/haskoin-go/peerd/pkg/addrmgr"
	"github.com/haskoin-go/peerd/pkg/config"
	"github.com/haskoin-go/peerd/pkg/connmgr"
	"github.com/haskoin-go/peerd/pkg/liveness"
	"github.com/haskoin-go/peerd/pkg/metrics"
	"github.com/haskoin-go/peerd/pkg/peer"
	"github.com/haskoin-go/peerd/pkg/supervisor"
	"github.com/haskoin-go/peerd/pkg/wire/payload"
	"github.com/haskoin-go/peerd/pkg/wire/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dialer opens an outbound connection to addr.
type Dialer func(ctx context.Context, addr *net.TCPAddr) (net.Conn, error)

// DefaultDialer dials plain TCP with a five-second timeout.
func DefaultDialer(ctx context.Context, addr *net.TCPAddr) (net.Conn, error) {
	d := net.Dialer{Timeout: 5 * time.Second}
	return d.DialContext(ctx, "tcp", addr.String())
}

// Manager is the Peer Manager Actor.
type Manager struct {
	cfg       config.Config
	localAddr payload.NetAddr
	dialer    Dialer

	registry *peer.Registry
	known    *addrmgr.Manager
	sup      *supervisor.Supervisor

	mailbox chan mailboxMsg

	events   chan<- Event
	messages chan<- PeerMessage

	log     *zap.Logger
	metrics *metrics.Metrics

	bestBlock uint32
}

// New constructs a Manager, wiring its own Supervisor so that child deaths
// loop back into the mailbox as msgPeerDied. events and messages
// may be nil if the caller does not want to observe them.
func New(cfg config.Config, dialer Dialer, log *zap.Logger, mtr *metrics.Metrics, events chan<- Event, messages chan<- PeerMessage) (*Manager, error) {
	localAddr, err := cfg.LocalNetAddr()
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}
	if dialer == nil {
		dialer = DefaultDialer
	}
	m := &Manager{
		cfg:       cfg,
		localAddr: localAddr,
		dialer:    dialer,
		registry:  peer.NewRegistry(),
		known:     addrmgr.New(),
		mailbox:   make(chan mailboxMsg, 1024),
		events:    events,
		messages:  messages,
		log:       log,
		metrics:   mtr,
	}
	m.sup = supervisor.New(log, m.ManagerDied)
	return m, nil
}

func (m *Manager) send(msg mailboxMsg) { m.mailbox <- msg }

// --- Message-injection entry points ---

// ManagerBest sets the best block height; expected once before Run's main
// loop begins.
func (m *Manager) ManagerBest(height uint32) { m.send(msgManagerBest{height}) }

// ManagerConnect requests a dial to addr.
func (m *Manager) ManagerConnect(addr *net.TCPAddr) { m.send(msgConnect{addr}) }

// ManagerVersion delivers an inbound Version from mb.
func (m *Manager) ManagerVersion(mb *peer.Mailbox, v *payload.Version) {
	m.send(msgPeerVersion{mb, v})
}

// ManagerVerAck delivers an inbound VerAck from mb.
func (m *Manager) ManagerVerAck(mb *peer.Mailbox) { m.send(msgPeerVerAck{mb}) }

// ManagerPing delivers an inbound Ping from mb.
func (m *Manager) ManagerPing(mb *peer.Mailbox, nonce uint64) { m.send(msgPeerPing{mb, nonce}) }

// ManagerPong delivers an inbound Pong from mb.
func (m *Manager) ManagerPong(mb *peer.Mailbox, nonce uint64) { m.send(msgPeerPong{mb, nonce}) }

// ManagerAddrs delivers a gossiped address list from mb.
func (m *Manager) ManagerAddrs(mb *peer.Mailbox, addrs []*net.TCPAddr) {
	m.send(msgPeerAddrs{mb, addrs})
}

// ManagerTickle records that mb produced protocol activity.
func (m *Manager) ManagerTickle(mb *peer.Mailbox) { m.send(msgPeerTickle{mb}) }

// ManagerCheck requests a liveness check of mb.
func (m *Manager) ManagerCheck(mb *peer.Mailbox) { m.send(msgCheckPeer{mb}) }

// ManagerDied reports that task's underlying child has terminated.
func (m *Manager) ManagerDied(task *peer.TaskHandle, err error) { m.send(msgPeerDied{task, err}) }

// --- Observable surface ---

// Peers returns only the connected peers, sorted by median ping.
func (m *Manager) Peers() []*peer.OnlinePeer { return m.registry.Connected() }

// Peer looks a peer up by its mailbox identity.
func (m *Manager) Peer(mb *peer.Mailbox) (*peer.OnlinePeer, bool) {
	return m.registry.FindByMailbox(mb)
}

// Known exposes the KnownAddresses pool, e.g. for the Connect Loop.
func (m *Manager) Known() *addrmgr.Manager { return m.known }

// --- Run loop ---

// Run waits for the initial ManagerBest, then serializes mailbox
// processing alongside the Connect Loop until ctx is cancelled. No new
// dials are initiated once the Connect Loop's context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.awaitBestBlock(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		connmgr.Run(gctx, connmgr.Deps{
			Known:       m.known,
			OnlineCount: m.registry.Len,
			IsOnline:    m.registry.HasAddress,
			Connect:     m.ManagerConnect,
			Discover:    func(ctx context.Context) { m.known.Discover(ctx, m.cfg, m.registry.HasAddress) },
			MaxPeers:    m.cfg.MaxPeers,
		})
		return nil
	})
	g.Go(func() error { return m.loop(gctx) })
	return g.Wait()
}

// awaitBestBlock only accepts a ManagerBest message; every other message
// arriving before it is logged and dropped, since handshake/liveness
// state is meaningless without a best-block height to advertise.
func (m *Manager) awaitBestBlock(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.mailbox:
			if b, ok := msg.(msgManagerBest); ok {
				m.bestBlock = b.height
				return nil
			}
			m.log.Warn("dropping message received before ManagerBest")
		}
	}
}

func (m *Manager) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.mailbox:
			m.dispatch(msg)
		}
	}
}

func (m *Manager) dispatch(msg mailboxMsg) {
	switch v := msg.(type) {
	case msgManagerBest:
		m.bestBlock = v.height
	case msgConnect:
		m.handleConnect(v.addr)
	case msgPeerVersion:
		m.handleVersion(v.mb, v.v)
	case msgPeerVerAck:
		m.handleVerAck(v.mb)
	case msgPeerPing:
		m.handlePing(v.mb, v.nonce)
	case msgPeerPong:
		m.handlePong(v.mb, v.nonce)
	case msgPeerAddrs:
		m.handleAddrs(v.mb, v.addrs)
	case msgPeerTickle:
		m.handleTickle(v.mb)
	case msgCheckPeer:
		m.handleCheckPeer(v.mb)
	case msgPeerDied:
		m.handlePeerDied(v.task, v.err)
	}
}

// --- Handlers ---

// handleConnect dials addr and registers a new OnlinePeer for it.
func (m *Manager) handleConnect(addr *net.TCPAddr) {
	if m.registry.HasAddress(addr.String()) {
		m.log.Debug("drop connect: already online", zap.String("addr", addr.String()))
		return
	}

	mb := peer.NewMailbox()
	nonce := rand.Uint64()
	now := time.Now()
	op := &peer.OnlinePeer{
		Address:      addr,
		Mailbox:      mb,
		Nonce:        nonce,
		ConnectTime:  now,
		TickledAt:    now,
		DisconnectAt: now.Add(jitterLife(m.cfg.MaxLife)),
		Busy:         true,
	}

	task := m.sup.Launch(context.Background(), func(taskCtx context.Context) error {
		conn, err := m.dialer(taskCtx, addr)
		if err != nil {
			return err
		}
		m.registry.Modify(mb, func(p *peer.OnlinePeer) { p.Busy = false })
		g, gctx := errgroup.WithContext(taskCtx)
		g.Go(func() error { return peer.RunTask(gctx, conn, mb, m) })
		g.Go(func() error {
			liveness.Run(gctx, mb, m.cfg.Timeout, m.ManagerCheck)
			return nil
		})
		return g.Wait()
	})
	op.Task = task
	m.registry.Insert(op)
	m.known.Remove(addr.String())

	ourVersion := m.buildVersion(addr, nonce)
	mb.Send(ourVersion)

	if m.metrics != nil {
		m.metrics.KnownAddrs.Set(float64(m.known.Len()))
	}
}

func (m *Manager) buildVersion(remote *net.TCPAddr, nonce uint64) *payload.Version {
	services := protocol.NodeNetwork
	if m.cfg.Network.SegWit {
		services |= protocol.NodeBloom
	}
	return &payload.Version{
		ProtocolVersion: protocol.DefaultVersion,
		Services:        services,
		Timestamp:       time.Now().Unix(),
		AddrRecv:        payload.NewNetAddr(remote.IP, uint16(remote.Port), services),
		AddrSend:        m.localAddr,
		Nonce:           nonce,
		UserAgent:       m.cfg.Network.UserAgent,
		StartHeight:     int32(m.bestBlock),
		Relay:           true,
	}
}

// handleVersion applies an inbound Version and advances the handshake.
func (m *Manager) handleVersion(mb *peer.Mailbox, v *payload.Version) {
	if v.Services&protocol.NodeNetwork == 0 {
		m.killPeer(mb, NotNetworkPeer)
		return
	}
	if m.registry.HasNonce(v.Nonce) {
		m.killPeer(mb, PeerIsMyself)
		return
	}
	if _, ok := m.registry.FindByMailbox(mb); !ok {
		m.killPeer(mb, UnknownPeer)
		return
	}

	var became bool
	m.registry.Modify(mb, func(p *peer.OnlinePeer) { became = p.ApplyVersion(v) })
	mb.Send(&payload.VerAck{})
	m.publishMessage(mb, v)
	if became {
		m.announce(mb)
	}
}

// handleVerAck applies an inbound VerAck and advances the handshake.
func (m *Manager) handleVerAck(mb *peer.Mailbox) {
	if _, ok := m.registry.FindByMailbox(mb); !ok {
		m.killPeer(mb, UnknownPeer)
		return
	}
	var became bool
	m.registry.Modify(mb, func(p *peer.OnlinePeer) { became = p.ApplyVerAck() })
	m.publishMessage(mb, &payload.VerAck{})
	if became {
		m.announce(mb)
	}
}

// handlePing answers an inbound Ping with a matching Pong.
func (m *Manager) handlePing(mb *peer.Mailbox, nonce uint64) {
	mb.Send(&payload.Pong{Nonce: nonce})
	m.publishMessage(mb, &payload.Ping{Nonce: nonce})
}

// handlePong matches an inbound Pong against the outstanding ping.
func (m *Manager) handlePong(mb *peer.Mailbox, nonce uint64) {
	var matched bool
	var rtt time.Duration
	m.registry.Modify(mb, func(p *peer.OnlinePeer) {
		matched, rtt = p.RecordPong(nonce, time.Now())
	})
	if matched && m.metrics != nil {
		m.metrics.PingRTT.Observe(rtt.Seconds())
	}
	m.publishMessage(mb, &payload.Pong{Nonce: nonce})
}

// handleAddrs folds a gossiped address list into the known pool.
func (m *Manager) handleAddrs(mb *peer.Mailbox, addrs []*net.TCPAddr) {
	if _, ok := m.registry.FindByMailbox(mb); !ok {
		return
	}
	if m.cfg.Discover {
		m.known.AddGossip(addrs, m.registry.HasAddress)
		if m.metrics != nil {
			m.metrics.KnownAddrs.Set(float64(m.known.Len()))
		}
	}
	na := make([]payload.NetAddr, 0, len(addrs))
	services := protocol.NodeNetwork
	for _, a := range addrs {
		na = append(na, payload.NewNetAddr(a.IP, uint16(a.Port), services))
	}
	m.publishMessage(mb, &payload.Addr{List: na})
}

// handleTickle records that a peer produced protocol activity.
func (m *Manager) handleTickle(mb *peer.Mailbox) {
	m.registry.Modify(mb, func(p *peer.OnlinePeer) { p.Tickle(time.Now()) })
}

// handleCheckPeer runs one liveness check against a peer.
func (m *Manager) handleCheckPeer(mb *peer.Mailbox) {
	op, ok := m.registry.FindByMailbox(mb)
	if !ok {
		return
	}
	if op.Busy {
		return
	}
	now := time.Now()
	// The lifetime check is unconditional, independent of the
	// tickle/ping branch below.
	if !now.Before(op.DisconnectAt) {
		m.killPeer(mb, PeerTooOld)
		return
	}
	if now.Sub(op.TickledAt) <= m.cfg.Timeout {
		return
	}
	if op.OutstandingPing != nil {
		m.killPeer(mb, PeerTimeout)
		return
	}
	nonce := rand.Uint64()
	m.registry.Modify(mb, func(p *peer.OnlinePeer) {
		p.OutstandingPing = &peer.OutstandingPing{SentAt: now, Nonce: nonce}
	})
	mb.Send(&payload.Ping{Nonce: nonce})
}

// handlePeerDied removes a dead peer from the registry and, if it had
// ever connected, publishes PeerDisconnected.
func (m *Manager) handlePeerDied(task *peer.TaskHandle, err error) {
	op, ok := m.registry.FindByTask(task)
	if !ok {
		m.log.Debug("PeerDied for untracked task")
		return
	}
	m.registry.Remove(op.Mailbox)
	if op.Announced() {
		m.publishEvent(PeerDisconnected{Peer: op})
	}
	if err != nil {
		m.log.Info("peer died", zap.String("addr", op.Address.String()), zap.Error(err))
	} else {
		m.log.Info("peer died", zap.String("addr", op.Address.String()))
	}
	if m.metrics != nil {
		m.metrics.ConnectedPeers.Set(float64(len(m.registry.Connected())))
	}
}

// announce publishes PeerConnected iff connected and not yet announced,
// idempotent across the Version/VerAck arrival orders.
func (m *Manager) announce(mb *peer.Mailbox) {
	op, ok := m.registry.FindByMailbox(mb)
	if !ok || !op.Connected() || op.Announced() {
		return
	}
	m.registry.Modify(mb, func(p *peer.OnlinePeer) { p.MarkAnnounced() })
	m.publishEvent(PeerConnected{Peer: op})
	if m.metrics != nil {
		m.metrics.ConnectedPeers.Set(float64(len(m.registry.Connected())))
	}
}

func (m *Manager) killPeer(mb *peer.Mailbox, kind Kind) {
	op, ok := m.registry.FindByMailbox(mb)
	addr := "unknown"
	if ok {
		addr = op.Address.String()
	}
	perr := newPeerError(kind, addr)
	m.log.Warn("killing peer", zap.Error(perr))
	if m.metrics != nil {
		m.metrics.KillsByKind.WithLabelValues(kind.String()).Inc()
	}
	if ok && op.Task != nil {
		op.Task.Cancel()
	}
}

func (m *Manager) publishEvent(e Event) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- e:
	default:
		m.log.Warn("dropping event: events channel full")
	}
}

func (m *Manager) publishMessage(mb *peer.Mailbox, msg payload.Message) {
	if m.messages == nil {
		return
	}
	op, ok := m.registry.FindByMailbox(mb)
	if !ok {
		return
	}
	select {
	case m.messages <- PeerMessage{Peer: op, Msg: msg}:
	default:
		m.log.Warn("dropping peer message: messages channel full")
	}
}

// jitterLife draws the disconnect deadline from life * U[0.75, 1.0].
func jitterLife(life time.Duration) time.Duration {
	if life <= 0 {
		return 0
	}
	lo := life * 3 / 4
	span := life - lo
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(span)))
}

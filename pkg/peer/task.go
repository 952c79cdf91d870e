package peer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/haskoin-go/peerd/pkg/wire/payload"
	"golang.org/x/sync/errgroup"
)

// Inbox is the set of message-injection entry points a peer task drives as
// it parses inbound wire frames. The manager implements this interface;
// the task is deliberately ignorant of manager internals and only knows
// the wire codec and I/O loop.
type Inbox interface {
	ManagerVersion(mb *Mailbox, v *payload.Version)
	ManagerVerAck(mb *Mailbox)
	ManagerPing(mb *Mailbox, nonce uint64)
	ManagerPong(mb *Mailbox, nonce uint64)
	ManagerAddrs(mb *Mailbox, addrs []*net.TCPAddr)
	ManagerTickle(mb *Mailbox)
	ManagerDied(task *TaskHandle, err error)
}

var cmdCodes = map[string]byte{
	payload.CmdVersion: 1,
	payload.CmdVerAck:  2,
	payload.CmdPing:    3,
	payload.CmdPong:    4,
	payload.CmdAddr:    5,
	payload.CmdGetAddr: 6,
}

var codeCmds = func() map[byte]string {
	out := make(map[byte]string, len(cmdCodes))
	for k, v := range cmdCodes {
		out[v] = k
	}
	return out
}()

func writeFrame(w io.Writer, msg payload.Message) error {
	enc, ok := msg.(interface{ Encode(io.Writer) error })
	if !ok {
		return fmt.Errorf("peer: message %T does not implement Encode", msg)
	}
	var body bytes.Buffer
	if err := enc.Encode(&body); err != nil {
		return err
	}
	code, ok := cmdCodes[msg.Command()]
	if !ok {
		return fmt.Errorf("peer: unknown command %q", msg.Command())
	}
	var hdr [5]byte
	hdr[0] = code
	binary.BigEndian.PutUint32(hdr[1:5], uint32(body.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

func readFrame(r io.Reader) (payload.Message, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	cmd, ok := codeCmds[hdr[0]]
	if !ok {
		return nil, fmt.Errorf("peer: unknown command code %d", hdr[0])
	}
	n := binary.BigEndian.Uint32(hdr[1:5])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	br := bytes.NewReader(body)
	switch cmd {
	case payload.CmdVersion:
		v := &payload.Version{}
		return v, v.Decode(br)
	case payload.CmdVerAck:
		v := &payload.VerAck{}
		return v, v.Decode(br)
	case payload.CmdPing:
		v := &payload.Ping{}
		return v, v.Decode(br)
	case payload.CmdPong:
		v := &payload.Pong{}
		return v, v.Decode(br)
	case payload.CmdAddr:
		v := &payload.Addr{}
		return v, v.Decode(br)
	case payload.CmdGetAddr:
		v := &payload.GetAddr{}
		return v, v.Decode(br)
	default:
		return nil, fmt.Errorf("peer: unhandled command %q", cmd)
	}
}

// RunTask is the per-peer I/O loop: it drains
// the mailbox's outbound queue onto the wire and parses inbound frames
// into calls on inbox, converting an Addr payload into socket endpoints
// and every parsed message into a Tickle.
func RunTask(ctx context.Context, conn net.Conn, mb *Mailbox, inbox Inbox) error {
	defer conn.Close()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-mb.Outbox():
				if !ok {
					return nil
				}
				if err := writeFrame(conn, msg); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		for {
			msg, err := readFrame(conn)
			if err != nil {
				return err
			}
			inbox.ManagerTickle(mb)
			switch m := msg.(type) {
			case *payload.Version:
				inbox.ManagerVersion(mb, m)
			case *payload.VerAck:
				inbox.ManagerVerAck(mb)
			case *payload.Ping:
				inbox.ManagerPing(mb, m.Nonce)
			case *payload.Pong:
				inbox.ManagerPong(mb, m.Nonce)
			case *payload.Addr:
				addrs := make([]*net.TCPAddr, 0, len(m.List))
				for _, na := range m.List {
					addrs = append(addrs, na.Addr())
				}
				inbox.ManagerAddrs(mb, addrs)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	})

	return g.Wait()
}

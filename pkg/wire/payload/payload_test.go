package payload_test

import (
	"bytes"
	"net"
	"testing"

	"github.com/haskoin-go/peerd/pkg/wire/payload"
	"github.com/haskoin-go/peerd/pkg/wire/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetAddrRoundTrip(t *testing.T) {
	na := payload.NewNetAddr(net.ParseIP("10.0.0.1"), 8333, protocol.NodeNetwork)
	assert.Equal(t, uint16(8333), na.Addr().Port)
	assert.Equal(t, "10.0.0.1", na.Addr().IP.String())
}

func TestVersionEncodeDecodeRoundTrip(t *testing.T) {
	v := &payload.Version{
		ProtocolVersion: 70015,
		Services:        protocol.NodeNetwork,
		Timestamp:       1234,
		AddrRecv:        payload.NewNetAddr(net.ParseIP("1.2.3.4"), 8333, protocol.NodeNetwork),
		AddrSend:        payload.NewNetAddr(net.ParseIP("5.6.7.8"), 8334, protocol.NodeNetwork),
		Nonce:           42,
		UserAgent:       "/peerd:0.1/",
		StartHeight:     100,
		Relay:           true,
	}

	var buf bytes.Buffer
	require.NoError(t, v.Encode(&buf))

	var got payload.Version
	require.NoError(t, got.Decode(&buf))

	assert.Equal(t, v.ProtocolVersion, got.ProtocolVersion)
	assert.Equal(t, v.Services, got.Services)
	assert.Equal(t, v.Timestamp, got.Timestamp)
	assert.Equal(t, v.Nonce, got.Nonce)
	assert.Equal(t, v.UserAgent, got.UserAgent)
	assert.Equal(t, v.StartHeight, got.StartHeight)
	assert.Equal(t, v.Relay, got.Relay)
	assert.Equal(t, v.AddrRecv.Port, got.AddrRecv.Port)
	assert.Equal(t, v.AddrSend.Port, got.AddrSend.Port)
	assert.Equal(t, payload.CmdVersion, got.Command())
}

func TestVersionEncodeRejectsOverlongUserAgent(t *testing.T) {
	v := &payload.Version{UserAgent: string(make([]byte, 256))}
	var buf bytes.Buffer
	assert.Error(t, v.Encode(&buf))
}

func TestVerAckRoundTrip(t *testing.T) {
	va := &payload.VerAck{}
	var buf bytes.Buffer
	require.NoError(t, va.Encode(&buf))
	assert.Equal(t, 0, buf.Len())

	var got payload.VerAck
	require.NoError(t, got.Decode(&buf))
	assert.Equal(t, payload.CmdVerAck, got.Command())
}

func TestPingPongRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, payload.Ping{Nonce: 7}.Encode(&buf))

	var ping payload.Ping
	require.NoError(t, ping.Decode(&buf))
	assert.Equal(t, uint64(7), ping.Nonce)
	assert.Equal(t, payload.CmdPing, ping.Command())

	buf.Reset()
	require.NoError(t, payload.Pong{Nonce: 8}.Encode(&buf))
	var pong payload.Pong
	require.NoError(t, pong.Decode(&buf))
	assert.Equal(t, uint64(8), pong.Nonce)
	assert.Equal(t, payload.CmdPong, pong.Command())
}

func TestAddrRoundTrip(t *testing.T) {
	a := payload.Addr{List: []payload.NetAddr{
		payload.NewNetAddr(net.ParseIP("1.1.1.1"), 1, protocol.NodeNetwork),
		payload.NewNetAddr(net.ParseIP("2.2.2.2"), 2, protocol.NodeNetwork),
	}}
	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf))

	var got payload.Addr
	require.NoError(t, got.Decode(&buf))
	require.Len(t, got.List, 2)
	assert.Equal(t, uint16(1), got.List[0].Port)
	assert.Equal(t, uint16(2), got.List[1].Port)
	assert.Equal(t, payload.CmdAddr, got.Command())
}

func TestAddrEmptyRoundTrip(t *testing.T) {
	a := payload.Addr{}
	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf))

	var got payload.Addr
	require.NoError(t, got.Decode(&buf))
	assert.Empty(t, got.List)
}

func TestGetAddrRoundTrip(t *testing.T) {
	ga := payload.GetAddr{}
	var buf bytes.Buffer
	require.NoError(t, ga.Encode(&buf))
	assert.Equal(t, 0, buf.Len())

	var got payload.GetAddr
	require.NoError(t, got.Decode(&buf))
	assert.Equal(t, payload.CmdGetAddr, got.Command())
}

package protocol_test

import (
	"testing"

	"github.com/haskoin-go/peerd/pkg/wire/protocol"
	"github.com/stretchr/testify/assert"
)

func TestServiceFlagComposition(t *testing.T) {
	s := protocol.NodeNetwork | protocol.NodeBloom
	assert.NotZero(t, s&protocol.NodeNetwork)
	assert.NotZero(t, s&protocol.NodeBloom)

	network := protocol.NodeNetwork
	assert.Zero(t, network&protocol.NodeBloom)
}

func TestMagicString(t *testing.T) {
	assert.Equal(t, "mainnet", protocol.MainNet.String())
	assert.Equal(t, "testnet", protocol.TestNet.String())
	assert.Equal(t, "unknown", protocol.Magic(0).String())
}

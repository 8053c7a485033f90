package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientStateStrings(t *testing.T) {
	assert.Equal(t, "INIT", ClientInit.String())
	assert.Equal(t, "KEYS_SENT", ClientKeysSent.String())
	assert.Equal(t, "DONE", ClientDone.String())
	assert.Equal(t, "FAILED", ClientFailed.String())
	assert.Equal(t, "UNKNOWN", ClientState(99).String())
}

func TestServerStateStrings(t *testing.T) {
	assert.Equal(t, "LISTENING", ServerListening.String())
	assert.Equal(t, "EVALUATED", ServerEvaluated.String())
	assert.Equal(t, "DONE", ServerDone.String())
	assert.Equal(t, "FAILED", ServerFailed.String())
	assert.Equal(t, "UNKNOWN", ServerState(99).String())
}

func TestTerminalStates(t *testing.T) {
	for s := ClientInit; s <= ClientDecoded; s++ {
		assert.False(t, s.Terminal(), "client state %s", s)
	}
	assert.True(t, ClientDone.Terminal())
	assert.True(t, ClientFailed.Terminal())

	for s := ServerListening; s <= ServerResultsSent; s++ {
		assert.False(t, s.Terminal(), "server state %s", s)
	}
	assert.True(t, ServerDone.Terminal())
	assert.True(t, ServerFailed.Terminal())
}

package rpcsvc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

func TestNewTransport_AnonymousUDPPort(t *testing.T) {
	tr, err := rpcsvc.NewTransport(rpcsvc.UDP, "127.0.0.1", 0)
	require.NoError(t, err)
	defer tr.Close()

	assert.NotZero(t, tr.Port)
	assert.NotNil(t, tr.UDPConn())
}

func TestNewTransport_AnonymousTCPPort(t *testing.T) {
	tr, err := rpcsvc.NewTransport(rpcsvc.TCP, "127.0.0.1", 0)
	require.NoError(t, err)
	defer tr.Close()

	assert.NotZero(t, tr.Port)
	assert.NotNil(t, tr.Listener())
}

func TestCallInfo_IsStream(t *testing.T) {
	udp := &rpcsvc.CallInfo{Protocol: rpcsvc.UDP}
	tcp := &rpcsvc.CallInfo{Protocol: rpcsvc.TCP}

	assert.False(t, udp.IsStream())
	assert.True(t, tcp.IsStream())
}

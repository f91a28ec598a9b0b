package netio

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaynet/rudp/pkg/wire"
)

func TestSendRecvRoundTripPinsPeer(t *testing.T) {
	server, err := Listen(0)
	require.NoError(t, err)
	defer server.Close()

	addr := server.conn.LocalAddr().(*net.UDPAddr)
	client, err := Dial("127.0.0.1", addr.Port)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.True(t, client.Send(ctx, wire.TypeSyn, 0, nil))

	pkt, ok := server.Recv(ctx)
	require.True(t, ok)
	require.Equal(t, wire.TypeSyn, pkt.Type)
	require.NotNil(t, server.RemoteAddr())

	require.True(t, server.Send(ctx, wire.TypeSynAck, 0, nil))
	reply, ok := client.Recv(ctx)
	require.True(t, ok)
	require.Equal(t, wire.TypeSynAck, reply.Type)
}

func TestRecvReturnsOnContextCancellation(t *testing.T) {
	server, err := Listen(0)
	require.NoError(t, err)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := server.Recv(ctx)
	require.False(t, ok)
	require.Error(t, ctx.Err())
}

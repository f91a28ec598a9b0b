package rudp

import (
	"bytes"
	"context"
	"crypto/rand"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaynet/rudp/internal/lossynet"
	"github.com/relaynet/rudp/pkg/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func runTransfer(t *testing.T, variant Variant, payload []byte, recvBufSize int) ([]byte, error, bool) {
	t.Helper()
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	var sendOK bool
	var recvErr error
	received := make([]byte, recvBufSize)
	var n int

	go func() {
		defer wg.Done()
		server, err := Listen(ctx, port, variant)
		require.NoError(t, err)
		defer server.Close()
		n, recvErr = server.RecvAll(ctx, received)
	}()

	time.Sleep(50 * time.Millisecond)

	go func() {
		defer wg.Done()
		client, err := Connect(ctx, "127.0.0.1", port, variant)
		require.NoError(t, err)
		defer client.Close()
		sendOK = client.SendAll(ctx, payload)
	}()

	wg.Wait()
	return received[:n], recvErr, sendOK
}

func TestAllVariantsDeliverSmallPayload(t *testing.T) {
	for _, v := range []Variant{StopWait, GBN, RENO, SR} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			payload := []byte("hello, reliable world")
			got, err, ok := runTransfer(t, v, payload, 1024)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, payload, got)
		})
	}
}

func TestAllVariantsDeliverMultiSlicePayload(t *testing.T) {
	for _, v := range []Variant{StopWait, GBN, RENO, SR} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			payload := make([]byte, wire.MaxPayload*5+37)
			_, err := rand.Read(payload)
			require.NoError(t, err)

			got, err, ok := runTransfer(t, v, payload, len(payload)+1024)
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, bytes.Equal(payload, got))
		})
	}
}

func TestAllVariantsHandleEmptyPayload(t *testing.T) {
	for _, v := range []Variant{StopWait, GBN, RENO, SR} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			got, err, ok := runTransfer(t, v, []byte{}, 16)
			require.NoError(t, err)
			require.True(t, ok)
			require.Empty(t, got)
		})
	}
}

func TestRecvAllReportsBufferOverflow(t *testing.T) {
	for _, v := range []Variant{StopWait, GBN, RENO, SR} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			payload := make([]byte, wire.MaxPayload*2+10)
			_, err := rand.Read(payload)
			require.NoError(t, err)

			_, err, _ := runTransfer(t, v, payload, wire.MaxPayload)
			require.ErrorIs(t, err, ErrBufferOverflow)
		})
	}
}

// runTransferThroughRelay is like runTransfer but routes every datagram
// through a lossynet.Relay sitting between the two peers, exercising
// retransmission and (for GBN/SR) out-of-order delivery tolerance.
func runTransferThroughRelay(t *testing.T, variant Variant, payload []byte, policy lossynet.Policy) ([]byte, error, bool) {
	t.Helper()
	serverPort := freePort(t)

	relay, err := lossynet.New("127.0.0.1:"+strconv.Itoa(serverPort), policy)
	require.NoError(t, err)
	defer relay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	var sendOK bool
	var recvErr error
	received := make([]byte, len(payload)+1024)
	var n int

	go func() {
		defer wg.Done()
		server, err := Listen(ctx, serverPort, variant)
		require.NoError(t, err)
		defer server.Close()
		n, recvErr = server.RecvAll(ctx, received)
	}()

	time.Sleep(50 * time.Millisecond)

	go func() {
		defer wg.Done()
		client, err := Connect(ctx, relay.Addr().IP.String(), relay.Addr().Port, variant)
		require.NoError(t, err)
		defer client.Close()
		sendOK = client.SendAll(ctx, payload)
	}()

	wg.Wait()
	return received[:n], recvErr, sendOK
}

func TestGBNToleratesPacketLoss(t *testing.T) {
	payload := make([]byte, wire.MaxPayload*6)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	got, err, ok := runTransferThroughRelay(t, GBN, payload, lossynet.Policy{DropFraction: 0.2})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bytes.Equal(payload, got))
}

func TestSRToleratesReordering(t *testing.T) {
	payload := make([]byte, wire.MaxPayload*6)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	got, err, ok := runTransferThroughRelay(t, SR, payload, lossynet.Policy{ReorderEvery: 3, ReorderDelay: 80 * time.Millisecond})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bytes.Equal(payload, got))
}

func TestRenoToleratesPacketLoss(t *testing.T) {
	payload := make([]byte, wire.MaxPayload*8)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	got, err, ok := runTransferThroughRelay(t, RENO, payload, lossynet.Policy{DropFraction: 0.1})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bytes.Equal(payload, got))
}

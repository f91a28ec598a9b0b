package wire

import "testing"

import "github.com/stretchr/testify/require"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox")
	buf := Encode(TypeData, 7, payload)

	pkt, ok := Decode(buf)
	require.True(t, ok)
	require.Equal(t, TypeData, pkt.Type)
	require.EqualValues(t, 7, pkt.Num)
	require.Equal(t, payload, pkt.Data)
}

func TestEncodeControlPacketHasNoPayload(t *testing.T) {
	buf := Encode(TypeSyn, 0, nil)
	pkt, ok := Decode(buf)
	require.True(t, ok)
	require.Nil(t, pkt.Data)
}

func TestDecodeRejectsCorruptedPacket(t *testing.T) {
	buf := Encode(TypeData, 1, []byte("hello"))
	buf[len(buf)-1] ^= 0xFF

	_, ok := Decode(buf)
	require.False(t, ok)
}

func TestDecodeRejectsTruncatedPacket(t *testing.T) {
	buf := Encode(TypeData, 1, []byte("hello"))
	_, ok := Decode(buf[:HeaderLen-1])
	require.False(t, ok)
}

func TestDecodeRejectsOversizedPacket(t *testing.T) {
	_, ok := Decode(make([]byte, MaxPacket+1))
	require.False(t, ok)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	buf := Encode(TypeData, 1, []byte("hello"))
	// Truncate the payload without fixing up the length field.
	corrupt := append([]byte(nil), buf[:len(buf)-1]...)
	_, ok := Decode(corrupt)
	require.False(t, ok)
}

func TestEveryOddLengthPayloadChecksumsCleanly(t *testing.T) {
	for n := 0; n < 16; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i*31 + n)
		}
		buf := Encode(TypeData, uint32(n), payload)
		_, ok := Decode(buf)
		require.True(t, ok, "payload len %d", n)
	}
}

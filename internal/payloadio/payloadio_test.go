package payloadio

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestReadWritePayloadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WritePayload(fs, "/out.bin", []byte("payload bytes")))

	got, err := ReadPayload(fs, "/out.bin")
	require.NoError(t, err)
	require.Equal(t, []byte("payload bytes"), got)
}

func TestReadPayloadMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := ReadPayload(fs, "/missing.bin")
	require.Error(t, err)
}

// Package payloadio bridges the CLI's file arguments to the in-memory
// buffers pkg/rudp.Channel.SendAll/RecvAll operate on, through an
// afero.Fs so tests never touch the real filesystem.
package payloadio

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ReadPayload loads the entirety of path as the buffer a sender will
// transmit.
func ReadPayload(fs afero.Fs, path string) ([]byte, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading payload %s", path)
	}
	return b, nil
}

// WritePayload persists a received buffer to path, truncating any
// existing file.
func WritePayload(fs afero.Fs, path string, data []byte) error {
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing payload %s", path)
	}
	return nil
}

// AllocateRecvBuffer sizes a receive buffer for RecvAll. The protocol has
// no out-of-band length negotiation, so the caller must supply an upper
// bound on the expected transfer size; this just centralizes that policy
// in one, documented place.
func AllocateRecvBuffer(maxSize int) []byte {
	return make([]byte, maxSize)
}

package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"id":0,"token":"0"}`)
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxPayloadLen+1)
	require.ErrorIs(t, WriteFrame(&buf, oversized), ErrPayloadTooLarge)
}

func TestReadFrameSurfacesEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameSurfacesShortPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 10}) // claims 10 bytes, supplies none
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEmptyPayloadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, got)
}

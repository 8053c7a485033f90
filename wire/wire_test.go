package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello"),
		{0x00, 0xff, 0x00},
		bytes.Repeat([]byte{0xab}, 2<<20),
	}

	var buf bytes.Buffer
	for _, p := range payloads {
		require.NoError(t, Send(&buf, p))
	}
	for _, p := range payloads {
		got, err := Receive(&buf)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestZeroLengthFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, nil))
	assert.Equal(t, LengthFieldSize, buf.Len())

	got, err := Receive(&buf)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReceiveShortHeader(t *testing.T) {
	_, err := Receive(bytes.NewReader([]byte{0, 0, 0}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestReceiveShortPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, []byte("full payload")))
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := Receive(bytes.NewReader(truncated))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestReceiveOversizedFrame(t *testing.T) {
	var header [LengthFieldSize]byte
	binary.BigEndian.PutUint64(header[:], MaxFrameSize+1)

	_, err := Receive(bytes.NewReader(header[:]))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, []byte{1, 2, 3}))

	header := buf.Bytes()[:LengthFieldSize]
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 3}, header)
}

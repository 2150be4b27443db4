package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := ExecuteRequest{ID: 7, Database: "shop", SQL: "SELECT 1;"}
	require.NoError(t, WriteFrame(&buf, req))

	var got ExecuteRequest
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, req, got)
}

func TestFrame_RejectsEmptyFrame(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	var got ExecuteRequest
	require.Error(t, ReadFrame(buf, &got))
}

func TestFrame_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	hdr := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	buf.Write(hdr)
	var got ExecuteRequest
	require.Error(t, ReadFrame(&buf, &got))
}

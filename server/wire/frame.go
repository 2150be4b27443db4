package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/memrel/memrel/internal/kernelerr"
)

// MaxFrameSize limits memory usage on malformed/hostile input.
const MaxFrameSize = 8 << 20 // 8 MiB

// ReadFrame reads a single length-prefixed JSON frame.
func ReadFrame(r io.Reader, v any) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return kernelerr.New(kernelerr.IOError, "wire: empty frame")
	}
	if n > MaxFrameSize {
		return kernelerr.New(kernelerr.IOError, "wire: frame too large: %d > %d", n, MaxFrameSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	if err := json.Unmarshal(buf, v); err != nil {
		return kernelerr.Wrap(kernelerr.ParseError, err, "wire: bad json")
	}
	return nil
}

// WriteFrame writes v as a length-prefixed JSON frame.
func WriteFrame(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "wire: marshal")
	}
	if len(b) == 0 {
		return kernelerr.New(kernelerr.IOError, "wire: empty json")
	}
	if len(b) > MaxFrameSize {
		return kernelerr.New(kernelerr.IOError, "wire: json too large: %d > %d", len(b), MaxFrameSize)
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

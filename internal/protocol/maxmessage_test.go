package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func encodeFrame(msgType byte, body []byte) []byte {
	buf := make([]byte, 0, 5+len(body))
	buf = append(buf, msgType)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)+4))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, body...)
	return buf
}

func TestMaxMessageReaderPassesThroughMessageUnderLimit(t *testing.T) {
	frame := encodeFrame('Q', []byte("hello"))
	r := newMaxMessageReader(bytes.NewReader(frame), 1024)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("expected the frame to pass through unmodified, got %v want %v", got, frame)
	}
}

func TestMaxMessageReaderRejectsOversizedBody(t *testing.T) {
	frame := encodeFrame('d', make([]byte, 100))
	r := newMaxMessageReader(bytes.NewReader(frame), 10)
	if _, err := io.ReadAll(r); err == nil {
		t.Fatal("expected an error for a body exceeding the configured max")
	}
}

func TestMaxMessageReaderAllowsSecondMessageAfterFirstCompletes(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeFrame('Q', []byte("first")))
	buf.Write(encodeFrame('Q', []byte("second")))
	r := newMaxMessageReader(&buf, 1024)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := append(encodeFrame('Q', []byte("first")), encodeFrame('Q', []byte("second"))...)
	if !bytes.Equal(got, want) {
		t.Fatalf("expected both frames concatenated, got %v want %v", got, want)
	}
}

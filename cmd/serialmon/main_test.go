package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestTailCopiesCompleteLines(t *testing.T) {
	src := strings.NewReader("line one\nline two\n")
	var dst bytes.Buffer

	err := tail(src, &dst)
	if err != io.EOF {
		t.Fatalf("tail() error = %v, want io.EOF", err)
	}
	want := "line one\nline two\n"
	if dst.String() != want {
		t.Errorf("tail() copied %q, want %q", dst.String(), want)
	}
}

func TestTailFlushesTrailingPartialLine(t *testing.T) {
	// A log line truncated by EOF (no trailing newline, e.g. a panic
	// message written right before the machine halts) must still reach
	// dst rather than being dropped by the buffered reader.
	src := strings.NewReader("complete\nPANIC: halted")
	var dst bytes.Buffer

	err := tail(src, &dst)
	if err != io.EOF {
		t.Fatalf("tail() error = %v, want io.EOF", err)
	}
	want := "complete\nPANIC: halted"
	if dst.String() != want {
		t.Errorf("tail() copied %q, want %q", dst.String(), want)
	}
}

func TestTailEmptySourceReturnsEOF(t *testing.T) {
	var dst bytes.Buffer
	if err := tail(strings.NewReader(""), &dst); err != io.EOF {
		t.Errorf("tail() of an empty source = %v, want io.EOF", err)
	}
	if dst.Len() != 0 {
		t.Errorf("tail() wrote %d bytes from an empty source, want 0", dst.Len())
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errBroken }

var errBroken = errBrokenErr("serial link broken")

type errBrokenErr string

func (e errBrokenErr) Error() string { return string(e) }

func TestTailPropagatesReadError(t *testing.T) {
	var dst bytes.Buffer
	if err := tail(errReader{}, &dst); err != errBroken {
		t.Errorf("tail() error = %v, want %v", err, errBroken)
	}
}

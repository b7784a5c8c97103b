package faults

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"validation", Validationf("Video is longer than configured maximum length"), Validation},
		{"wrapped validation", fmt.Errorf("clip: %w", Validationf("Range is too large for gif")), Validation},
		{"path error", &fs.PathError{Op: "open", Path: "/tmp/x", Err: fs.ErrNotExist}, Transient},
		{"wrapped path error", fmt.Errorf("write archive: %w", &fs.PathError{Op: "write", Path: "a.zip", Err: fs.ErrPermission}), Transient},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, Transient},
		{"unexpected eof", io.ErrUnexpectedEOF, Transient},
		{"deadline", context.DeadlineExceeded, Transient},
		{"cancelled", context.Canceled, Unexpected},
		{"marked", MarkTransient(errors.New("proxy dropped connection")), Transient},
		{"permanent path error", MarkPermanent(&fs.PathError{Op: "read", Path: "a.mp3", Err: fs.ErrClosed}), Unexpected},
		{"wrapped permanent", fmt.Errorf("entry 2: %w", MarkPermanent(io.ErrUnexpectedEOF)), Unexpected},
		{"plain", errors.New("malformed upstream data"), Unexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Expected class %s, got %s", tt.want, got)
			}
		})
	}
}

func TestValidationMessageIsVerbatim(t *testing.T) {
	err := Validationf("Playlist is longer than configured maximum length")
	if Details(err) != "Playlist is longer than configured maximum length" {
		t.Errorf("Unexpected details: %q", Details(err))
	}
}

func TestMarkTransientNil(t *testing.T) {
	if MarkTransient(nil) != nil {
		t.Error("Expected nil when marking a nil error")
	}
	if IsTransient(nil) {
		t.Error("nil must not be transient")
	}
}

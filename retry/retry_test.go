package retry

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/Atronar/yt-dlp-web-api/faults"
)

var errDisk = &fs.PathError{Op: "write", Path: "downloads/a.mp3", Err: errors.New("device busy")}

func TestDoInvocationCounts(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error // error returned by each successive call, nil = success
		wantCalls int
		wantErr   bool
	}{
		{"success first time", []error{nil}, 1, false},
		{"transient then success", []error{errDisk, nil}, 2, false},
		{"transient twice", []error{errDisk, errDisk, nil}, 2, true},
		{"validation is not retried", []error{faults.Validationf("too long"), nil}, 1, true},
		{"unexpected is not retried", []error{errors.New("bad json"), nil}, 1, true},
		{"transient then validation", []error{errDisk, faults.Validationf("nope")}, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := NewPolicy(nil)
			got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
				e := tt.failures[calls]
				calls++
				if e != nil {
					return 0, e
				}
				return 42, nil
			})

			if calls != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr && err == nil {
				t.Error("Expected an error, got nil")
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if got != 42 {
					t.Errorf("Expected result 42, got %d", got)
				}
			}
		})
	}
}

func TestPolicyAllowsOneRetryPerJob(t *testing.T) {
	p := NewPolicy(nil)
	ctx := context.Background()

	first := 0
	_ = Run(ctx, p, func(ctx context.Context) error {
		first++
		if first == 1 {
			return errDisk
		}
		return nil
	})
	if first != 2 {
		t.Fatalf("Expected first step to be retried, got %d calls", first)
	}
	if !p.Spent() {
		t.Fatal("Expected policy to be spent after a retry")
	}

	// A second step of the same job gets no further retry.
	second := 0
	err := Run(ctx, p, func(ctx context.Context) error {
		second++
		return errDisk
	})
	if second != 1 {
		t.Errorf("Expected a single call once the retry is spent, got %d", second)
	}
	if err == nil {
		t.Error("Expected the transient error to be returned")
	}
}

func TestOnRetryObservesError(t *testing.T) {
	var seen error
	p := NewPolicy(func(err error) { seen = err })

	calls := 0
	_ = Run(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errDisk
		}
		return nil
	})

	if !errors.Is(seen, errDisk) {
		t.Errorf("Expected onRetry to receive the transient error, got %v", seen)
	}
}

func TestCancelledContextIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_ = Run(ctx, NewPolicy(nil), func(ctx context.Context) error {
		calls++
		return errDisk
	})
	if calls != 1 {
		t.Errorf("Expected 1 call with a cancelled context, got %d", calls)
	}
}

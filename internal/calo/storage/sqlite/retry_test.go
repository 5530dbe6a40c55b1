package sqlite

import (
	"errors"
	"testing"
)

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked (5) (SQLITE_BUSY)")

	t.Run("success after retry", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		testErr := errors.New("some other error")
		err := retryOnBusy(func() error {
			calls++
			return testErr
		})
		if err != testErr {
			t.Errorf("expected %v, got %v", testErr, err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return busy
		})
		if err == nil {
			t.Error("expected error, got nil")
		}
		if calls != maxBusyRetries {
			t.Errorf("expected %d calls, got %d", maxBusyRetries, calls)
		}
	})
}

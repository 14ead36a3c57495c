package retry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Base: 1, Cap: 1, JitterFrac: 0}
	err := Do(context.Background(), p, nil, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	p := DefaultPolicy()
	err := Do(context.Background(), p, nil, func(ctx context.Context) error {
		calls++
		return FromHTTPStatus(404, errors.New("not found"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a 4xx, got %d", calls)
	}
	if !IsClientError(err) {
		t.Fatalf("expected IsClientError, got %v", err)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Base: 1, Cap: 1, JitterFrac: 0}
	err := Do(context.Background(), p, nil, func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_ContextCancelledStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, DefaultPolicy(), nil, func(ctx context.Context) error {
		calls++
		return errors.New("should not matter")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 1 {
		t.Fatalf("expected at most 1 call after cancellation, got %d", calls)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	cerr := ClassifyHTTPError(resp, "bad gateway")
	if cerr == nil {
		t.Fatal("expected error for 502")
	}
	if IsClientError(cerr) {
		t.Fatal("502 must not classify as client error")
	}
}

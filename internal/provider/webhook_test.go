package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func testSummary() CompletionSummary {
	completedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return CompletionSummary{
		BatchID:       "6f1c5d1e-0000-4000-8000-000000000001",
		Intent:        "GENERATE_SOA",
		Initiator:     "admin-1",
		Total:         5,
		Succeeded:     4,
		Failed:        1,
		FailedUnitIDs: []string{"u3"},
		StartedAt:     completedAt.Add(-time.Minute),
		CompletedAt:   &completedAt,
	}
}

func TestWebhookNotifierNotifyCompletionSuccess(t *testing.T) {
	t.Parallel()

	var gotBody CompletionSummary
	var gotBatchHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotBatchHeader = r.Header.Get("X-Batch-ID")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}

	summary := testSummary()
	if err := p.NotifyCompletion(context.Background(), summary); err != nil {
		t.Fatalf("NotifyCompletion() unexpected error: %v", err)
	}

	if gotBatchHeader != summary.BatchID {
		t.Fatalf("X-Batch-ID = %q, want %q", gotBatchHeader, summary.BatchID)
	}
	if gotBody.BatchID != summary.BatchID || gotBody.Succeeded != 4 || gotBody.Failed != 1 {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
	if len(gotBody.FailedUnitIDs) != 1 || gotBody.FailedUnitIDs[0] != "u3" {
		t.Fatalf("failedUnitIds = %v, want [u3]", gotBody.FailedUnitIDs)
	}
}

func TestWebhookNotifierStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("webhook failed"))
			}))
			defer server.Close()

			p, err := NewWebhookNotifier(server.URL)
			if err != nil {
				t.Fatalf("NewWebhookNotifier() error = %v", err)
			}

			err = p.NotifyCompletion(context.Background(), testSummary())
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("ProviderError.StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestWebhookNotifierTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	p, err := NewWebhookNotifierWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewWebhookNotifierWithClient() error = %v", err)
	}

	err = p.NotifyCompletion(context.Background(), testSummary())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestNewWebhookNotifierRejectsInvalidEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "   ", "not a url"} {
		if _, err := NewWebhookNotifier(endpoint); err == nil {
			t.Fatalf("expected error for endpoint %q", endpoint)
		}
	}
}

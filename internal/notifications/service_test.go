package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"convoy/internal/config"
	"convoy/internal/events"
	"convoy/internal/job"
	"convoy/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		mu.Lock()
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedRequest, len(captured))
		copy(out, captured)
		return out
	}
}

func configFor(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobFailed, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "job failed",
			event:          notifications.EventJobFailed,
			payload:        notifications.Payload{"title": "Arrival", "error": "exit status 1"},
			expectTitle:    "convoy - Job Failed",
			expectMessage:  "❌ Arrival failed: exit status 1",
			expectTags:     "convoy,job,failed",
			expectPriority: "high",
		},
		{
			name:          "batch settled cleanly",
			event:         notifications.EventBatchSettled,
			payload:       notifications.Payload{"completed": 4},
			expectTitle:   "convoy - Batch Complete",
			expectMessage: "Batch complete: 4 converted",
			expectTags:    "convoy,batch,completed",
		},
		{
			name:          "batch settled with failures",
			event:         notifications.EventBatchSettled,
			payload:       notifications.Payload{"completed": 2, "failed": 1, "cancelled": 1},
			expectTitle:   "convoy - Batch Complete (with errors)",
			expectMessage: "Batch complete: 2 converted, 1 failed, 1 cancelled",
			expectTags:    "convoy,batch,completed",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "convoy - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "convoy,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newCaptureServer(t)
			svc := notifications.NewService(configFor(server.URL))
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			got := captured()
			if len(got) != 1 {
				t.Fatalf("expected one request, got %d", len(got))
			}
			if got[0].title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got[0].title)
			}
			if got[0].body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got[0].body)
			}
			if got[0].tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got[0].tags)
			}
			if got[0].priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got[0].priority)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := configFor(server.URL)
	cfg.Notifications.JobFailed = false
	cfg.Notifications.BatchSettled = false
	svc := notifications.NewService(cfg)

	for _, event := range []notifications.Event{notifications.EventJobFailed, notifications.EventBatchSettled, "unknown"} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"title": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic is read-only", http.StatusForbidden)
	}))
	defer server.Close()

	svc := notifications.NewService(configFor(server.URL))
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestObserverForwardsFailuresAndSettlements(t *testing.T) {
	server, captured := newCaptureServer(t)
	svc := notifications.NewService(configFor(server.URL))
	obs := notifications.NewObserver(svc, nil)

	bus := events.NewBus(nil)
	bus.Subscribe(obs, obs.Types()...)

	d, err := job.NewDescriptor(job.Params{SourceRef: "src", Title: "Arrival", Kind: job.KindMovie, Extension: job.ExtensionVideo})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	bus.Publish(events.Event{Type: events.TypeStarted, Job: job.Snapshot{Descriptor: d}})
	bus.Publish(events.Event{Type: events.TypeFailed, Job: job.Snapshot{Descriptor: d}, Message: "exit status 1"})
	bus.Publish(events.Event{Type: events.TypeBatchSettled, BatchID: "b1", Counts: map[string]int{"completed": 3, "failed": 1}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Events after Close are ignored.
	bus.Publish(events.Event{Type: events.TypeFailed, Job: job.Snapshot{Descriptor: d}})

	got := captured()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %+v", len(got), got)
	}
	if got[0].body != "❌ Arrival failed: exit status 1" {
		t.Fatalf("unexpected failure body %q", got[0].body)
	}
	if got[1].body != "Batch complete: 3 converted, 1 failed, 0 cancelled" {
		t.Fatalf("unexpected batch body %q", got[1].body)
	}
	if bus.Faults() != 0 {
		t.Fatalf("observer should not fault, got %d", bus.Faults())
	}
}

type countingService struct {
	mu    sync.Mutex
	count int
}

func (s *countingService) Publish(context.Context, notifications.Event, notifications.Payload) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func TestObserverCloseRacesWithEvents(t *testing.T) {
	svc := &countingService{}
	obs := notifications.NewObserver(svc, nil)
	evt := events.Event{Type: events.TypeBatchSettled, BatchID: "b1"}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				obs.OnEvent(evt)
			}
		}()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
	if err := obs.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	svc.mu.Lock()
	sent := svc.count
	svc.mu.Unlock()
	obs.OnEvent(evt)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.count != sent {
		t.Fatal("event after Close was delivered")
	}
}

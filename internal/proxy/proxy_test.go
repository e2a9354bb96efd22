package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testProxy(t *testing.T, collectorURL string) (*Server, *Bus, *httptest.Server) {
	t.Helper()
	bus := NewBus()
	s, err := NewServer(collectorURL, bus)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, bus, srv
}

func TestSubmitDeliveredDirectly(t *testing.T) {
	var collectorBody []byte
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		collectorBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"formId":"srv-9"}`))
	}))
	defer collector.Close()

	_, bus, srv := testProxy(t, collector.URL)
	msgs := bus.Subscribe(4)

	payload := `{"litres":640,"site":"depot-1"}`
	resp, err := http.Post(srv.URL+"/api/forms", "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	// The real collector response passes through untouched
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Status: got %d, want 201", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"success":true,"formId":"srv-9"}` {
		t.Errorf("Body not passed through: %s", body)
	}
	if string(collectorBody) != payload {
		t.Errorf("Payload not forwarded verbatim: %s", collectorBody)
	}

	select {
	case msg := <-msgs:
		if msg.Kind != KindDeliveredDirectly {
			t.Errorf("Kind: got %s, want %s", msg.Kind, KindDeliveredDirectly)
		}
		if msg.FormID != "srv-9" {
			t.Errorf("FormID: got %s, want srv-9", msg.FormID)
		}
		if msg.Payload != nil {
			t.Error("Direct delivery message should not carry the payload")
		}
	case <-time.After(time.Second):
		t.Fatal("No bus message published")
	}

	// Kinds are mutually exclusive: exactly one message per request
	select {
	case msg := <-msgs:
		t.Errorf("Unexpected second message: %s", msg.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitDeferredWhenCollectorDown(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	collector.Close() // refuses connections

	_, bus, srv := testProxy(t, collector.URL)
	msgs := bus.Subscribe(4)

	payload := `{"litres":300}`
	resp, err := http.Post(srv.URL+"/api/forms", "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	// The submitting client sees success even though delivery failed
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status: got %d, want 200", resp.StatusCode)
	}
	var ack struct {
		Success  bool `json:"success"`
		Deferred bool `json:"deferred"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("Decode deferred ack: %v", err)
	}
	if !ack.Success || !ack.Deferred {
		t.Errorf("Ack: got %+v, want success+deferred", ack)
	}

	select {
	case msg := <-msgs:
		if msg.Kind != KindNeedsDurableEnqueue {
			t.Errorf("Kind: got %s, want %s", msg.Kind, KindNeedsDurableEnqueue)
		}
		if string(msg.Payload) != payload {
			t.Errorf("Payload: got %s, want %s", msg.Payload, payload)
		}
		if err := msg.Validate(); err != nil {
			t.Errorf("Published message invalid: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("No enqueue message published")
	}
}

func TestSubmitNon2xxIsDeferred(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer collector.Close()

	_, bus, srv := testProxy(t, collector.URL)
	msgs := bus.Subscribe(4)

	resp, err := http.Post(srv.URL+"/api/forms", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status: got %d, want 200", resp.StatusCode)
	}

	select {
	case msg := <-msgs:
		if msg.Kind != KindNeedsDurableEnqueue {
			t.Errorf("Kind: got %s, want %s", msg.Kind, KindNeedsDurableEnqueue)
		}
	case <-time.After(time.Second):
		t.Fatal("No enqueue message published")
	}
}

func TestSubmitWithoutConsumerFailsLoudly(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	collector.Close()

	// No subscriber: the deferred path would lose the submission
	_, _, srv := testProxy(t, collector.URL)

	resp, err := http.Post(srv.URL+"/api/forms", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status: got %d, want 503", resp.StatusCode)
	}
}

func TestAPIGetNetworkFirstWithCacheFallback(t *testing.T) {
	hits := 0
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reports":42}`))
	}))

	_, _, srv := testProxy(t, collector.URL)

	// First GET goes to the network and primes the cache
	resp, err := http.Get(srv.URL + "/api/reports")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"reports":42}` {
		t.Errorf("Body: got %s", body)
	}
	if hits != 1 {
		t.Errorf("Collector hits: got %d, want 1", hits)
	}

	// Collector gone: the cached answer is served, marked stale
	collector.Close()
	resp, err = http.Get(srv.URL + "/api/reports")
	if err != nil {
		t.Fatalf("GET after outage failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"reports":42}` {
		t.Errorf("Cached body: got %s", body)
	}
	if resp.Header.Get("X-Fieldsync-Cache") != "stale" {
		t.Error("Cached response not marked stale")
	}
}

func TestAPIGetOfflineNoCache(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	collector.Close()

	_, _, srv := testProxy(t, collector.URL)

	resp, err := http.Get(srv.URL + "/api/never-seen")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status: got %d, want 503", resp.StatusCode)
	}
	var out struct {
		Offline bool `json:"offline"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode offline body: %v", err)
	}
	if !out.Offline {
		t.Error("Offline marker missing")
	}
}

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"delivered", Message{Kind: KindDeliveredDirectly}, false},
		{"enqueue with payload", Message{Kind: KindNeedsDurableEnqueue, Payload: []byte(`{}`)}, false},
		{"enqueue without payload", Message{Kind: KindNeedsDurableEnqueue}, true},
		{"unknown kind", Message{Kind: "submission-exploded"}, true},
		{"empty kind", Message{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	if got := bus.Publish(Message{Kind: KindDeliveredDirectly}); got != 1 {
		t.Errorf("First publish delivered %d, want 1", got)
	}
	// Buffer full: drop instead of blocking the request path
	if got := bus.Publish(Message{Kind: KindDeliveredDirectly}); got != 0 {
		t.Errorf("Second publish delivered %d, want 0", got)
	}
	<-ch
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []json.RawMessage
}

func (f *fakeEnqueuer) Enqueue(payload json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return "fr-test", nil
}

func TestBridgeEnqueuesValidMessages(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(8)
	enq := &fakeEnqueuer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		Bridge(ctx, ch, enq)
		close(done)
	}()

	bus.Publish(Message{Kind: KindNeedsDurableEnqueue, Payload: []byte(`{"a":1}`)})
	bus.Publish(Message{Kind: KindDeliveredDirectly, FormID: "x"})
	bus.Publish(Message{Kind: "bogus"})
	bus.Publish(Message{Kind: KindNeedsDurableEnqueue, Payload: []byte(`{"b":2}`)})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		enq.mu.Lock()
		n := len(enq.payloads)
		enq.mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	enq.mu.Lock()
	defer enq.mu.Unlock()
	if len(enq.payloads) != 2 {
		t.Fatalf("Enqueued %d payloads, want 2", len(enq.payloads))
	}
	if string(enq.payloads[0]) != `{"a":1}` || string(enq.payloads[1]) != `{"b":2}` {
		t.Errorf("Payloads: got %s, %s", enq.payloads[0], enq.payloads[1])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Bridge did not stop on cancel")
	}
}

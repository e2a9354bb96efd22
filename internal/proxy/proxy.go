// Package proxy fronts the report collector with a local HTTP server.
// Form submissions are tried against the collector first; when that
// fails the client still gets a success-shaped answer and the payload
// goes onto the bus for durable queueing. The proxy itself never
// persists anything.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
)

const submitPath = "/api/forms"

// Server is the interception proxy.
type Server struct {
	collector *url.URL
	client    *http.Client
	bus       *Bus
	cache     *responseCache
	forward   *httputil.ReverseProxy
}

// NewServer creates a proxy in front of the given collector URL.
func NewServer(collectorURL string, bus *Bus) (*Server, error) {
	u, err := url.Parse(collectorURL)
	if err != nil {
		return nil, fmt.Errorf("parse collector url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("collector url must be absolute: %q", collectorURL)
	}

	forward := httputil.NewSingleHostReverseProxy(u)
	forward.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Debug("pass-through failed", "path", r.URL.Path, "err", err)
		w.WriteHeader(http.StatusBadGateway)
	}

	return &Server{
		collector: u,
		client:    &http.Client{Timeout: 15 * time.Second},
		bus:       bus,
		cache:     newResponseCache(),
		forward:   forward,
	}, nil
}

// Handler returns the proxy's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(submitPath, s.handleSubmit)
	mux.HandleFunc("/api/", s.handleAPI)
	mux.Handle("/", s.forward)
	return mux
}

// handleSubmit intercepts POST /api/forms. Direct delivery first; a
// delivery failure is converted into an accepted-but-deferred answer so
// the submitting client never sees the outage.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	status, respBody, contentType, err := s.deliver(payload)
	if err == nil && status >= 200 && status < 300 {
		var ack struct {
			FormID string `json:"formId"`
		}
		json.Unmarshal(respBody, &ack)
		s.bus.Publish(Message{Kind: KindDeliveredDirectly, FormID: ack.FormID})

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write(respBody)
		return
	}

	// Collector unreachable or refusing: hand the payload to the queue
	// side and answer as if it were accepted
	delivered := s.bus.Publish(Message{Kind: KindNeedsDurableEnqueue, Payload: payload})
	if delivered == 0 {
		// No consumer means the submission would be lost; that is the
		// one case where the client must see the failure
		slog.Warn("no queue consumer for deferred submission")
		http.Error(w, `{"success":false,"error":"queue unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	slog.Debug("submission deferred", "bytes", len(payload))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success":true,"deferred":true}`))
}

// deliver forwards a submission body to the collector.
func (s *Server) deliver(payload []byte) (status int, body []byte, contentType string, err error) {
	target := s.collector.JoinPath(submitPath).String()
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", err
	}
	return resp.StatusCode, body, resp.Header.Get("Content-Type"), nil
}

// handleAPI serves GET /api/* network-first with a cache fallback.
// Non-GET API traffic passes straight through.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.forward.ServeHTTP(w, r)
		return
	}

	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	target := *s.collector
	target.Path = strings.TrimSuffix(target.Path, "/") + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := s.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr == nil {
			contentType := resp.Header.Get("Content-Type")
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.cache.put(key, resp.StatusCode, contentType, body)
			}
			if contentType != "" {
				w.Header().Set("Content-Type", contentType)
			}
			w.WriteHeader(resp.StatusCode)
			w.Write(body)
			return
		}
	}

	// Network failed: serve the last good answer if we have one
	if entry, ok := s.cache.get(key); ok {
		slog.Debug("serving cached response", "path", key)
		entry.serve(w)
		return
	}

	slog.Debug("offline with no cache", "path", key)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(`{"success":false,"offline":true}`))
}

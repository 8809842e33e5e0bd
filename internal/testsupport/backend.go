package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Route names understood by Backend.
const (
	RouteDownload = "download"
	RouteConvert  = "convert"
	RouteHistory  = "history"
	RouteFile     = "file"
)

// Reply scripts one response from the fake backend. Body is JSON-encoded
// unless Raw is set. A non-nil Wait blocks the handler until it is closed or
// the client goes away.
type Reply struct {
	Status      int
	Body        any
	Raw         string
	ContentType string
	Wait        <-chan struct{}
}

// RecordedRequest captures what the client sent.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Decode unmarshals the recorded JSON body into v.
func (r RecordedRequest) Decode(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode recorded %s body %q: %v", r.Path, r.Body, err)
	}
}

// Backend is an in-process fake of the media job API.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	scripted map[string][]Reply
	defaults map[string]Reply
	requests map[string][]RecordedRequest
}

// NewBackend starts a fake backend. Without scripting, download returns
// /tmp/a.mp4, convert returns /tmp/a.converted.mp4, history is empty and
// file serves the local file named by the path query parameter.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		scripted: map[string][]Reply{},
		defaults: map[string]Reply{
			RouteDownload: {Status: http.StatusOK, Body: map[string]string{"path": "/tmp/a.mp4"}},
			RouteConvert:  {Status: http.StatusOK, Body: map[string]string{"output": "/tmp/a.converted.mp4"}},
			RouteHistory:  {Status: http.StatusOK, Body: map[string]any{"items": []any{}}},
		},
		requests: map[string][]RecordedRequest{},
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/download", b.handler(RouteDownload)).Methods(http.MethodPost)
	api.HandleFunc("/convert", b.handler(RouteConvert)).Methods(http.MethodPost)
	api.HandleFunc("/history", b.handler(RouteHistory)).Methods(http.MethodGet)
	api.HandleFunc("/file", b.handler(RouteFile)).Methods(http.MethodGet)

	b.Server = httptest.NewServer(router)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Script queues replies for a route; they are consumed in order before the
// route falls back to its default.
func (b *Backend) Script(route string, replies ...Reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripted[route] = append(b.scripted[route], replies...)
}

// SetDefault replaces the fallback reply for a route.
func (b *Backend) SetDefault(route string, reply Reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaults[route] = reply
}

// Requests returns a copy of the requests received on a route.
func (b *Backend) Requests(route string) []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests[route]))
	copy(out, b.requests[route])
	return out
}

// Count returns how many requests reached a route.
func (b *Backend) Count(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests[route])
}

// HistoryItems is a convenience for scripting the history payload.
func HistoryItems(items ...map[string]any) Reply {
	if items == nil {
		items = []map[string]any{}
	}
	return Reply{Status: http.StatusOK, Body: map[string]any{"items": items}}
}

// Detail builds an error reply carrying a detail message.
func Detail(status int, detail string) Reply {
	return Reply{Status: status, Body: map[string]string{"detail": detail}}
}

func (b *Backend) handler(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reply, ok := b.record(route, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})

		if reply.Wait != nil {
			select {
			case <-reply.Wait:
			case <-r.Context().Done():
				return
			}
		}

		if !ok && route == RouteFile {
			serveLocalFile(w, r)
			return
		}
		writeReply(w, reply)
	}
}

func (b *Backend) record(route string, req RecordedRequest) (Reply, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests[route] = append(b.requests[route], req)
	if queue := b.scripted[route]; len(queue) > 0 {
		b.scripted[route] = queue[1:]
		return queue[0], true
	}
	reply, ok := b.defaults[route]
	return reply, ok
}

func writeReply(w http.ResponseWriter, reply Reply) {
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Raw != "" || reply.Body == nil {
		contentType := reply.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply.Raw)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(reply.Body)
}

func serveLocalFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeReply(w, Detail(http.StatusNotFound, "File not found"))
		return
	}
	http.ServeFile(w, r, path)
}

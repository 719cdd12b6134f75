// Package testutil provides a fake Rent-a-Ride backend whose list endpoints
// answer in the inconsistent shapes the real one uses.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// APIPrefix is the path prefix the fake backend serves under.
const APIPrefix = "/api"

// Envelope selects how a list answer is wrapped.
type Envelope string

const (
	// EnvelopeData answers {"success": true, "data": [...]}.
	EnvelopeData Envelope = "data"
	// EnvelopeNamed answers {"<resource>": [...]}.
	EnvelopeNamed Envelope = "named"
	// EnvelopeAll answers {"all<Resource>": [...]}.
	EnvelopeAll Envelope = "all"
	// EnvelopeBare answers the array itself.
	EnvelopeBare Envelope = "bare"
)

// Call records one request received by the backend.
type Call struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          string
}

type failure struct {
	status int
	body   string
}

// Backend is an in-memory admin API served over httptest.
type Backend struct {
	mu        sync.Mutex
	records   map[string][]map[string]any
	envelopes map[string]Envelope
	latency   map[string]time.Duration
	failures  map[string][]failure
	calls     []Call

	token        string
	successField string

	engine *gin.Engine
	server *httptest.Server
}

// Option configures a Backend.
type Option func(*Backend)

// WithToken requires "Bearer <token>" on every request; others get 401.
func WithToken(token string) Option {
	return func(b *Backend) { b.token = token }
}

// WithEnvelope sets the list envelope of resource. The default is EnvelopeData.
func WithEnvelope(resource string, env Envelope) Option {
	return func(b *Backend) { b.envelopes[resource] = env }
}

// WithMisspelledSuccess reports write results under "succes" instead of "success".
func WithMisspelledSuccess() Option {
	return func(b *Backend) { b.successField = "succes" }
}

// NewBackend starts a backend that is closed when the test ends.
func NewBackend(t testing.TB, opts ...Option) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		records:      make(map[string][]map[string]any),
		envelopes:    make(map[string]Envelope),
		latency:      make(map[string]time.Duration),
		failures:     make(map[string][]failure),
		successField: "success",
	}
	for _, opt := range opts {
		opt(b)
	}

	b.engine = gin.New()
	b.engine.Use(gin.Recovery(), b.record, b.authenticate, b.injectFailure)

	admin := b.engine.Group(APIPrefix + "/admin")
	admin.GET("/:resource", b.list)
	admin.DELETE("/:resource/:id", b.remove)
	admin.PATCH("/:resource/:id/status", b.setStatus)

	b.server = httptest.NewServer(b.engine)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the backend origin.
func (b *Backend) URL() string {
	return b.server.URL
}

// Handler returns the gin engine, for use without a listener.
func (b *Backend) Handler() http.Handler {
	return b.engine
}

// Seed appends records to resource.
func (b *Backend) Seed(resource string, records ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[resource] = append(b.records[resource], records...)
}

// Records returns the current records of resource.
func (b *Backend) Records(resource string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.records[resource]...)
}

// SetEnvelope changes the list envelope of resource.
func (b *Backend) SetEnvelope(resource string, env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes[resource] = env
}

// SetLatency delays list answers of resource by d.
func (b *Backend) SetLatency(resource string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency[resource] = d
}

// FailNext makes the next request with method to resource answer status
// with body instead of being handled.
func (b *Backend) FailNext(method, resource string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := failureKey(method, resource)
	b.failures[key] = append(b.failures[key], failure{status: status, body: body})
}

// Calls returns the requests received so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns how many requests with method were received for resource.
func (b *Backend) CallCount(method, resource string) int {
	prefix := APIPrefix + "/admin/" + resource
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && (c.Path == prefix || strings.HasPrefix(c.Path, prefix+"/")) {
			n++
		}
	}
	return n
}

func failureKey(method, resource string) string {
	return strings.ToUpper(method) + " " + resource
}

func (b *Backend) record(c *gin.Context) {
	body, _ := c.GetRawData()
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	b.mu.Lock()
	b.calls = append(b.calls, Call{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
		RequestID:     c.GetHeader("X-Request-ID"),
		Body:          string(body),
	})
	b.mu.Unlock()
	c.Next()
}

func (b *Backend) authenticate(c *gin.Context) {
	if b.token == "" || c.GetHeader("Authorization") == "Bearer "+b.token {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{b.successField: false, "message": "jwt expired"})
}

func (b *Backend) injectFailure(c *gin.Context) {
	key := failureKey(c.Request.Method, c.Param("resource"))

	b.mu.Lock()
	queue := b.failures[key]
	var f *failure
	if len(queue) > 0 {
		f = &queue[0]
		b.failures[key] = queue[1:]
	}
	b.mu.Unlock()

	if f == nil {
		c.Next()
		return
	}
	c.Data(f.status, contentType(f.body), []byte(f.body))
	c.Abort()
}

func contentType(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "application/json; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

func (b *Backend) list(c *gin.Context) {
	resource := c.Param("resource")

	b.mu.Lock()
	delay := b.latency[resource]
	env := b.envelopes[resource]
	items := append([]map[string]any{}, b.records[resource]...)
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return
		}
	}
	c.JSON(http.StatusOK, wrap(env, resource, items))
}

func wrap(env Envelope, resource string, items []map[string]any) any {
	switch env {
	case EnvelopeNamed:
		return gin.H{resource: items}
	case EnvelopeAll:
		return gin.H{"all" + strings.ToUpper(resource[:1]) + resource[1:]: items}
	case EnvelopeBare:
		return items
	default:
		return gin.H{"success": true, "data": items}
	}
}

func (b *Backend) remove(c *gin.Context) {
	resource, id := c.Param("resource"), c.Param("id")

	b.mu.Lock()
	items := b.records[resource]
	idx := indexOf(items, id)
	if idx >= 0 {
		b.records[resource] = append(items[:idx:idx], items[idx+1:]...)
	}
	b.mu.Unlock()

	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{b.successField: false, "message": resource + " " + id + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{b.successField: true, "message": "deleted"})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (b *Backend) setStatus(c *gin.Context) {
	resource, id := c.Param("resource"), c.Param("id")

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{b.successField: false, "message": "status is required"})
		return
	}

	b.mu.Lock()
	items := b.records[resource]
	idx := indexOf(items, id)
	if idx >= 0 {
		updated := make(map[string]any, len(items[idx])+1)
		for k, v := range items[idx] {
			updated[k] = v
		}
		updated["status"] = req.Status
		items[idx] = updated
	}
	b.mu.Unlock()

	// unknown ids answer 200 with a false success indicator
	if idx < 0 {
		c.JSON(http.StatusOK, gin.H{b.successField: false, "message": resource + " " + id + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{b.successField: true, "message": "status updated"})
}

func indexOf(items []map[string]any, id string) int {
	for i, item := range items {
		if v, ok := item["_id"].(string); ok && v == id {
			return i
		}
	}
	return -1
}

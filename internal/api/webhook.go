/**
 * @description
 * Inbound chain-activity webhook endpoint. The HMAC is recomputed over the
 * raw, unparsed body and compared against the X-Signature header before any
 * JSON decoding — re-serialization is not guaranteed to be byte-identical, so
 * verifying anything but the original bytes would be unsound.
 *
 * Response policy: 403 only for a bad or missing signature. Every other
 * outcome — including internal processing errors after verification — is
 * absorbed into a 2xx so the provider stops redelivering, and logged for
 * operator visibility.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afan2g/tacto-backend/internal/app"
	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/metrics"
)

// ReplayGuard suppresses reprocessing of recently seen deliveries. Seen marks
// the key and reports whether it was already present.
type ReplayGuard interface {
	Seen(r *http.Request, key string) bool
}

// WebhookHandler processes inbound chain-activity notifications.
type WebhookHandler struct {
	reconciler *app.Reconciler
	secret     string
	replay     ReplayGuard
}

// NewWebhookHandler creates the webhook endpoint handler.
func NewWebhookHandler(reconciler *app.Reconciler, secret string, replay ReplayGuard) *WebhookHandler {
	if replay == nil {
		replay = NewMemoryReplayGuard()
	}
	return &WebhookHandler{reconciler: reconciler, secret: secret, replay: replay}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=error component=webhook msg=\"cannot read body\" err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.validSignature(r.Header.Get("X-Signature"), body) {
		metrics.WebhooksTotal.WithLabelValues("bad_signature").Inc()
		log.Printf("level=warn component=webhook msg=\"invalid signature\" remote=%s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	// Signature verified. From here on every outcome acknowledges.
	var event domain.ChainActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhooksTotal.WithLabelValues("malformed").Inc()
		log.Printf("level=error component=webhook msg=\"malformed payload absorbed\" err=%v", err)
		h.ack(w)
		return
	}

	sum := sha256.Sum256(body)
	if h.replay.Seen(r, hex.EncodeToString(sum[:])) {
		metrics.WebhooksTotal.WithLabelValues("duplicate").Inc()
		h.ack(w)
		return
	}

	if err := h.reconciler.ProcessActivity(r.Context(), &event); err != nil {
		metrics.WebhooksTotal.WithLabelValues("error_absorbed").Inc()
		log.Printf("level=error component=webhook msg=\"processing error absorbed\" err=%v", err)
		h.ack(w)
		return
	}
	metrics.WebhooksTotal.WithLabelValues("processed").Inc()
	h.ack(w)
}

func (h *WebhookHandler) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// validSignature recomputes HMAC-SHA256 over the raw body and compares the
// hex digest against the header constant-time.
func (h *WebhookHandler) validSignature(header string, body []byte) bool {
	header = strings.TrimSpace(strings.ToLower(header))
	if header == "" || h.secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// MemoryReplayGuard is the in-process fallback replay guard.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

const replayWindow = time.Hour

// NewMemoryReplayGuard creates an in-memory replay guard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]time.Time)}
}

func (g *MemoryReplayGuard) Seen(_ *http.Request, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-replayWindow)
	for k, ts := range g.seen {
		if ts.Before(cutoff) {
			delete(g.seen, k)
		}
	}

	if _, ok := g.seen[key]; ok {
		return true
	}
	g.seen[key] = time.Now()
	return false
}

// RedisReplayGuard shares the replay window across instances. Redis being
// unreachable degrades to processing the delivery; the conditional ledger
// update stays the authoritative idempotency barrier.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisReplayGuard creates a Redis-backed replay guard.
func NewRedisReplayGuard(client *redis.Client, prefix string) *RedisReplayGuard {
	if prefix == "" {
		prefix = "tacto:webhook_seen"
	}
	return &RedisReplayGuard{client: client, prefix: prefix}
}

func (g *RedisReplayGuard) Seen(r *http.Request, key string) bool {
	set, err := g.client.SetNX(r.Context(), g.prefix+":"+key, 1, replayWindow).Result()
	if err != nil {
		log.Printf("level=warn component=webhook msg=\"replay guard unavailable, processing delivery\" err=%v", err)
		return false
	}
	return !set
}

package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/app"
	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/store"
)

const (
	testSecret       = "whsec_test"
	testFeeCollector = "0x0000000000000000000000000000000000008001"
	walletFrom       = "0x1111111111111111111111111111111111111111"
	walletTo         = "0x2222222222222222222222222222222222222222"
)

// webhookRepo tracks ledger mutations so tests can assert exactly how many a
// delivery caused.
type webhookRepo struct {
	store.Repository

	mu           sync.Mutex
	owners       map[string]uuid.UUID
	confirmCalls int
	lastFee      string
}

func (r *webhookRepo) FindWalletOwner(ctx context.Context, address string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.owners[address]; ok {
		return id, nil
	}
	return uuid.Nil, store.ErrNotFound
}

func (r *webhookRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return &domain.User{ID: userID, Handle: "someone"}, nil
}

func (r *webhookRepo) ConfirmTransactionByHash(ctx context.Context, hash string, fee string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmCalls++
	r.lastFee = fee
	return r.confirmCalls == 1, nil
}

type testSink struct {
	mu   sync.Mutex
	msgs []domain.PushNotification
}

func (s *testSink) Enqueue(n domain.PushNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, n)
	return true
}

func (s *testSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newWebhookFixture() (*WebhookHandler, *webhookRepo, *testSink) {
	repo := &webhookRepo{owners: map[string]uuid.UUID{
		walletFrom: uuid.New(),
		walletTo:   uuid.New(),
	}}
	sink := &testSink{}
	rec := app.NewReconciler(repo, sink, testFeeCollector, "USDC")
	return NewWebhookHandler(rec, testSecret, nil), repo, sink
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func deliver(h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chain-activity", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func settlementBody(hash string) []byte {
	return []byte(`{"event":{"activity":[` +
		`{"fromAddress":"` + walletFrom + `","toAddress":"` + walletTo + `","asset":"USDC","value":10.5,"hash":"` + hash + `"},` +
		`{"fromAddress":"` + walletFrom + `","toAddress":"` + testFeeCollector + `","asset":"ETH","value":0.0003,"hash":"` + hash + `"},` +
		`{"fromAddress":"` + testFeeCollector + `","toAddress":"` + walletFrom + `","asset":"ETH","value":0.0001,"hash":"` + hash + `"}` +
		`]}}`)
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	h, repo, sink := newWebhookFixture()

	body := settlementBody("0xaaa")
	signature := sign(body)
	tampered := bytes.Replace(body, []byte(`"value":10.5`), []byte(`"value":99.9`), 1)

	rr := deliver(h, tampered, signature)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if repo.confirmCalls != 0 {
		t.Error("a delivery failing verification must not touch the ledger")
	}
	if sink.count() != 0 {
		t.Error("a delivery failing verification must not notify anyone")
	}
}

func TestWebhookMissingSignatureRejected(t *testing.T) {
	h, repo, _ := newWebhookFixture()

	rr := deliver(h, settlementBody("0xbbb"), "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if repo.confirmCalls != 0 {
		t.Error("unsigned delivery must not be processed")
	}
}

func TestWebhookSettlementConfirmedWithNetFee(t *testing.T) {
	h, repo, sink := newWebhookFixture()

	body := settlementBody("0xccc")
	rr := deliver(h, body, sign(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if repo.confirmCalls != 1 {
		t.Fatalf("confirm called %d times, want 1", repo.confirmCalls)
	}
	if repo.lastFee != "0.0002" {
		t.Errorf("net fee = %q, want 0.0002", repo.lastFee)
	}
	if sink.count() != 2 {
		t.Errorf("want sender and recipient notified, got %d notifications", sink.count())
	}
}

func TestWebhookGasOnlyEventAcknowledgedWithoutAction(t *testing.T) {
	h, repo, sink := newWebhookFixture()

	body := []byte(`{"event":{"activity":[` +
		`{"fromAddress":"` + walletFrom + `","toAddress":"` + testFeeCollector + `","asset":"ETH","value":0.0003,"hash":"0xddd"}` +
		`]}}`)
	rr := deliver(h, body, sign(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; a fee-only event is still acknowledged", rr.Code)
	}
	if repo.confirmCalls != 0 || sink.count() != 0 {
		t.Error("a fee-only event must cause no ledger mutation and no notifications")
	}
}

func TestWebhookMalformedPayloadAbsorbed(t *testing.T) {
	h, repo, _ := newWebhookFixture()

	body := []byte(`{"event": not-json`)
	rr := deliver(h, body, sign(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; malformed verified payloads are absorbed", rr.Code)
	}
	if repo.confirmCalls != 0 {
		t.Error("a malformed payload must not be processed")
	}
}

func TestWebhookRedeliverySuppressed(t *testing.T) {
	h, repo, _ := newWebhookFixture()

	body := settlementBody("0xeee")
	signature := sign(body)

	first := deliver(h, body, signature)
	second := deliver(h, body, signature)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("both deliveries must be acknowledged, got %d and %d", first.Code, second.Code)
	}
	if repo.confirmCalls != 1 {
		t.Errorf("redelivery caused %d confirm calls, want 1", repo.confirmCalls)
	}
}

func TestMemoryReplayGuard(t *testing.T) {
	g := NewMemoryReplayGuard()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	if g.Seen(req, "k1") {
		t.Error("first sighting reported as seen")
	}
	if !g.Seen(req, "k1") {
		t.Error("second sighting not reported as seen")
	}
	if g.Seen(req, "k2") {
		t.Error("distinct key reported as seen")
	}
}

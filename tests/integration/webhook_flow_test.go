package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	httpHandler "webhook-gateway/internal/adapter/http/handler"
	redisStorage "webhook-gateway/internal/adapter/storage/redis"
	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"
	"webhook-gateway/internal/service"
	"webhook-gateway/internal/worker"
	"webhook-gateway/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the full stack: real HTTP layer, services, Redis queue and
// dead-letter store on miniredis, and the delivery dispatcher. The worker
// pool is replaced by a synchronous drain so tests stay deterministic.
type testApp struct {
	server       *httptest.Server
	redis        *miniredis.Miniredis
	repo         *inMemoryEndpointRepo
	auditRepo    *inMemoryAuditRepo
	queue        *redisStorage.Queue
	dlq          *redisStorage.DeadLetterStore
	dispatcher   *worker.Dispatcher
	metrics      *countingMetrics
	tenantID     uuid.UUID
	token        string
	serviceToken string
}

func newTestApp(t *testing.T, failureThreshold int) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	// Zero base delay so drained retries are due immediately.
	queue := redisStorage.NewQueue(rdb, redisStorage.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   0,
		Multiplier:  2.0,
	})
	dlqStore := redisStorage.NewDeadLetterStore(rdb)

	log := logger.New("error", false)
	repo := newInMemoryEndpointRepo()
	auditRepo := newInMemoryAuditRepo()
	metrics := &countingMetrics{}

	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "webhook-gateway")
	auditSvc := service.NewAuditService(auditRepo, log)

	registrySvc := service.NewEndpointService(repo, auditSvc, log)
	deliverySvc := service.NewDeliveryService(repo, queue, dlqStore, sigSvc, auditSvc, log)

	dispatcher := worker.NewDispatcher(repo, dlqStore, auditSvc, metrics, worker.DispatcherConfig{
		FailureThreshold: failureThreshold,
		Cooldown:         30 * time.Minute,
		DeliveryTimeout:  5 * time.Second,
	}, log)

	serviceToken := "svc_" + uuid.NewString()
	tokenHash, err := hashSvc.Hash(serviceToken)
	require.NoError(t, err)

	tenantID := uuid.New()
	token, _, err := tokenSvc.Generate(tenantID)
	require.NoError(t, err)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Registry:        registrySvc,
		Delivery:        deliverySvc,
		TokenSvc:        tokenSvc,
		HashSvc:         hashSvc,
		IngestTokenHash: tokenHash,
		Logger:          log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:       server,
		redis:        mr,
		repo:         repo,
		auditRepo:    auditRepo,
		queue:        queue,
		dlq:          dlqStore,
		dispatcher:   dispatcher,
		metrics:      metrics,
		tenantID:     tenantID,
		token:        token,
		serviceToken: serviceToken,
	}
}

// drain processes queued deliveries synchronously until the lane is empty,
// applying the same ack/retry decisions the worker pool makes.
func (a *testApp) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		msg, err := a.queue.Dequeue(ctx, ports.LaneWebhooks)
		require.NoError(t, err)
		if msg == nil {
			return
		}
		if err := a.dispatcher.Process(ctx, msg); err != nil {
			_, retryErr := a.queue.Retry(ctx, ports.LaneWebhooks, msg)
			require.NoError(t, retryErr)
			continue
		}
		require.NoError(t, a.queue.Ack(ctx, ports.LaneWebhooks, msg))
	}
	t.Fatal("queue did not drain")
}

func (a *testApp) apiRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (a *testApp) createWebhook(t *testing.T, url string, events []string) (id, secret string) {
	t.Helper()
	resp := a.apiRequest(t, http.MethodPost, "/api/v1/webhooks", map[string]any{
		"url":    url,
		"events": events,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope struct {
		Data struct {
			ID     string `json:"id"`
			Secret string `json:"secret"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data.ID, envelope.Data.Secret
}

func (a *testApp) ingest(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"tenant_id": a.tenantID.String(),
		"event":     event,
		"payload":   payload,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/events", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", a.serviceToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

// ingestRaw posts an event without test assertions, safe to call from
// concurrent goroutines.
func (a *testApp) ingestRaw(payload string) error {
	raw, err := json.Marshal(map[string]any{
		"tenant_id": a.tenantID.String(),
		"event":     "order.created",
		"payload":   json.RawMessage(payload),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/events", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", a.serviceToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}

// capturedRequest records one delivery received by a test destination.
type capturedRequest struct {
	signature string
	timestamp string
	body      []byte
}

func secretHashHex(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func TestIntegration_EndToEndDelivery(t *testing.T) {
	app := newTestApp(t, 10)

	var mu sync.Mutex
	var received []capturedRequest
	destination := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, capturedRequest{
			signature: r.Header.Get("X-Signature"),
			timestamp: r.Header.Get("X-Timestamp"),
			body:      body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer destination.Close()

	_, secret := app.createWebhook(t, destination.URL, []string{"invoice.paid"})
	app.ingest(t, "invoice.paid", map[string]string{"invoice_id": "inv_42"})
	app.drain(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	got := received[0]

	// The receiver-side check: HMAC over body JSON plus header timestamp,
	// keyed by the SHA-256 hash of the registration secret.
	mac := hmac.New(sha256.New, []byte(secretHashHex(secret)))
	mac.Write(append(got.body, []byte(got.timestamp)...))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), got.signature)

	var body struct {
		Event     string          `json:"event"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp string          `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, "invoice.paid", body.Event)
	assert.JSONEq(t, `{"invoice_id":"inv_42"}`, string(body.Payload))
	assert.NotEmpty(t, body.Timestamp)

	succeeded, failed, _, _ := app.metrics.snapshot()
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, failed)
}

func TestIntegration_RetryEpisodePreservesSignature(t *testing.T) {
	app := newTestApp(t, 10)

	var mu sync.Mutex
	var received []capturedRequest
	var calls int
	destination := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls++
		n := calls
		received = append(received, capturedRequest{
			signature: r.Header.Get("X-Signature"),
			timestamp: r.Header.Get("X-Timestamp"),
			body:      body,
		})
		mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer destination.Close()

	id, _ := app.createWebhook(t, destination.URL, []string{"order.created"})
	app.ingest(t, "order.created", map[string]string{"order_id": "ord_7"})
	app.drain(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)

	// Retries replay the job byte for byte: same signature, same timestamps.
	for _, r := range received[1:] {
		assert.Equal(t, received[0].signature, r.signature)
		assert.Equal(t, received[0].timestamp, r.timestamp)
		assert.Equal(t, received[0].body, r.body)
	}

	// Success closed the episode: the failure counter is reset.
	endpointID, err := uuid.Parse(id)
	require.NoError(t, err)
	endpoint, err := app.repo.GetByID(context.Background(), app.tenantID, endpointID)
	require.NoError(t, err)
	assert.Zero(t, endpoint.FailureCount)
	assert.True(t, endpoint.IsActive)

	succeeded, failed, retried, deadLetters := app.metrics.snapshot()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 1, retried)
	assert.Zero(t, deadLetters)
}

func TestIntegration_CircuitOpensOnceAndReplays(t *testing.T) {
	app := newTestApp(t, 5)

	var mu sync.Mutex
	var hits int
	destination := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer destination.Close()

	id, _ := app.createWebhook(t, destination.URL, []string{"order.created"})
	app.ingest(t, "order.created", map[string]string{"order_id": "ord_1"})

	before := time.Now()
	app.drain(t)

	// All 5 attempts failed and the circuit tripped on the last one.
	mu.Lock()
	assert.Equal(t, 5, hits)
	mu.Unlock()

	endpointID, err := uuid.Parse(id)
	require.NoError(t, err)
	endpoint, err := app.repo.GetByID(context.Background(), app.tenantID, endpointID)
	require.NoError(t, err)
	assert.False(t, endpoint.IsActive)
	assert.Equal(t, 5, endpoint.FailureCount)
	require.NotNil(t, endpoint.NextRetryAt)
	assert.WithinDuration(t, before.Add(30*time.Minute), *endpoint.NextRetryAt, 10*time.Second)

	_, _, _, deadLetters := app.metrics.snapshot()
	assert.Equal(t, 1, deadLetters)

	// Exactly one dead-letter entry for the whole episode.
	resp := app.apiRequest(t, http.MethodGet, "/api/v1/webhooks/dlq", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Data []struct {
			ID   string `json:"id"`
			Data struct {
				Original  domain.DeliveryJob `json:"original"`
				Failures  int                `json:"failures"`
				LastError string             `json:"last_error"`
			} `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	entry := list.Data[0]
	assert.Equal(t, 5, entry.Data.Failures)
	assert.Contains(t, entry.Data.LastError, "500")
	originalSignature := entry.Data.Original.Signature
	require.NotNil(t, originalSignature)

	// Replay resubmits the original job and clears the entry.
	replayResp := app.apiRequest(t, http.MethodPost, "/api/v1/webhooks/dlq/"+entry.ID+"/replay", nil)
	defer replayResp.Body.Close()
	require.Equal(t, http.StatusOK, replayResp.StatusCode)

	resp2 := app.apiRequest(t, http.MethodGet, "/api/v1/webhooks/dlq", nil)
	defer resp2.Body.Close()
	var after struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&after))
	assert.Empty(t, after.Data)

	// The replayed job carries the original signature on the queue.
	msg, err := app.queue.Dequeue(context.Background(), ports.LaneWebhooks)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NotNil(t, msg.Job.Signature)
	assert.Equal(t, *originalSignature, *msg.Job.Signature)
}

func TestIntegration_StaleJobFailsWithoutDelivery(t *testing.T) {
	app := newTestApp(t, 10)

	var mu sync.Mutex
	var hits int
	destination := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer destination.Close()

	id, _ := app.createWebhook(t, destination.URL, []string{"order.created"})
	endpointID, err := uuid.Parse(id)
	require.NoError(t, err)

	stale := domain.DeliveryJob{
		EndpointID: endpointID,
		TenantID:   app.tenantID,
		Event:      "order.created",
		Body: domain.DeliveryBody{
			Event:     "order.created",
			Payload:   json.RawMessage(`{}`),
			Timestamp: "2026-01-01T00:00:00.000Z",
		},
		Timestamp: strconv.FormatInt(time.Now().Add(-10*time.Minute).UnixMilli(), 10),
	}
	require.NoError(t, app.queue.Enqueue(context.Background(), ports.LaneWebhooks, stale))
	app.drain(t)

	// The destination was never called, yet every attempt counted as failure.
	mu.Lock()
	assert.Zero(t, hits)
	mu.Unlock()

	endpoint, err := app.repo.GetByID(context.Background(), app.tenantID, endpointID)
	require.NoError(t, err)
	assert.Equal(t, 5, endpoint.FailureCount)
}

func TestIntegration_CooldownElapsedReenables(t *testing.T) {
	app := newTestApp(t, 10)

	var mu sync.Mutex
	var hits int
	destination := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer destination.Close()

	id, _ := app.createWebhook(t, destination.URL, []string{"order.created"})
	endpointID, err := uuid.Parse(id)
	require.NoError(t, err)

	// Simulate a circuit whose cooldown already elapsed.
	endpoint, err := app.repo.GetByID(context.Background(), app.tenantID, endpointID)
	require.NoError(t, err)
	opened := time.Now().Add(-40 * time.Minute)
	next := time.Now().Add(-10 * time.Minute)
	endpoint.IsActive = false
	endpoint.FailureCount = 10
	endpoint.CircuitOpenedAt = &opened
	endpoint.NextRetryAt = &next
	require.NoError(t, app.repo.Save(context.Background(), endpoint))

	app.ingest(t, "order.created", map[string]string{"order_id": "ord_9"})
	app.drain(t)

	mu.Lock()
	assert.Equal(t, 1, hits)
	mu.Unlock()

	endpoint, err = app.repo.GetByID(context.Background(), app.tenantID, endpointID)
	require.NoError(t, err)
	assert.True(t, endpoint.IsActive)
	assert.Zero(t, endpoint.FailureCount)
	assert.Nil(t, endpoint.CircuitOpenedAt)
}

func TestIntegration_FanOutRespectsSubscriptionsAndCircuit(t *testing.T) {
	app := newTestApp(t, 10)

	subscribedID, _ := app.createWebhook(t, "https://a.example.com/hook", []string{"order.created"})
	app.createWebhook(t, "https://b.example.com/hook", []string{"other.event"})
	coolingID, _ := app.createWebhook(t, "https://c.example.com/hook", []string{"order.created"})

	// Put the third endpoint mid-cooldown.
	coolingUUID, err := uuid.Parse(coolingID)
	require.NoError(t, err)
	cooling, err := app.repo.GetByID(context.Background(), app.tenantID, coolingUUID)
	require.NoError(t, err)
	opened := time.Now().Add(-time.Minute)
	next := time.Now().Add(29 * time.Minute)
	cooling.IsActive = false
	cooling.CircuitOpenedAt = &opened
	cooling.NextRetryAt = &next
	require.NoError(t, app.repo.Save(context.Background(), cooling))

	const events = 10
	errs := make(chan error, events)
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- app.ingestRaw(fmt.Sprintf(`{"n":%d}`, i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every queued job targets the one subscribed, healthy endpoint.
	var jobs int
	for {
		msg, err := app.queue.Dequeue(context.Background(), ports.LaneWebhooks)
		require.NoError(t, err)
		if msg == nil {
			break
		}
		jobs++
		assert.Equal(t, subscribedID, msg.Job.EndpointID.String())
		require.NoError(t, app.queue.Ack(context.Background(), ports.LaneWebhooks, msg))
	}
	assert.Equal(t, events, jobs)
}

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tablequeue/internal/config"
	"tablequeue/internal/database"
	"tablequeue/internal/events"
	"tablequeue/internal/models"
	"tablequeue/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db     *database.DB
	hub    *events.Hub
	server *HTTPServer
	ts     *httptest.Server
	codes  map[string]string
}

type captureSender struct {
	codes map[string]string
}

func (c *captureSender) SendOtp(_ context.Context, otpType, contact, code string) error {
	c.codes[otpType+":"+contact] = code
	return nil
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hub := events.NewHub()
	clock := service.NewSystemClock(time.UTC)
	sender := &captureSender{codes: map[string]string{}}
	otp := service.NewOtpService(db, nil, sender, clock, service.OtpOptions{}, nil)

	srv := NewHTTPServer(cfg, Services{
		Queues:    service.NewQueueService(db, hub, clock, 60, 3, nil),
		Shops:     service.NewShopService(db, otp, clock, nil),
		Customers: service.NewCustomerService(db, otp, clock, nil),
		Catalog:   service.NewCatalogService(db, clock, nil),
		Otp:       otp,
		Hub:       hub,
		Health:    db,
	}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{db: db, hub: hub, server: srv, ts: ts, codes: sender.codes}
}

func (e *testEnv) seedTableType(t *testing.T, id, shopID string, capacity int) {
	t.Helper()
	require.NoError(t, e.db.CreateTableType(context.Background(), &models.TableType{
		ID: id, ShopID: shopID, Type: "2-seater", Capacity: capacity, CreatedAt: time.Now(),
	}))
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	resp := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp = env.do(t, http.MethodGet, "/healthz", nil, requestIDHeader, "req-42")
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
}

func TestQueueFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.seedTableType(t, "t1", "s1", 1)

	resp := env.do(t, http.MethodPost, "/api/queues", service.AdmitRequest{ShopID: "s1", TableTypeID: "t1", CustomerID: "c1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decodeBody[models.Queue](t, resp)
	assert.Equal(t, models.StatusReadyToSeat, first.Status)

	resp = env.do(t, http.MethodPost, "/api/queues", service.AdmitRequest{ShopID: "s1", TableTypeID: "t1", CustomerID: "c2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := decodeBody[models.Queue](t, resp)
	assert.Equal(t, models.StatusWaiting, second.Status)
	assert.Equal(t, 1, second.QueueNumber)
	assert.Equal(t, 60, second.EstimatedWaitTime)

	resp = env.do(t, http.MethodPatch, "/api/queues/assign-table", service.AssignTableRequest{QueueID: first.ID, TableNo: "A1", TableTypeID: "t1", ShopID: "s1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "qr not confirmed yet")

	resp = env.do(t, http.MethodPatch, "/api/queues/generate-qr", map[string]string{"queue_id": first.ID, "queue_qr": "qr-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/queues/assign-table", service.AssignTableRequest{QueueID: first.ID, TableNo: "A1", TableTypeID: "t1", ShopID: "s1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/queues/table-status/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tables := decodeBody[[]models.TableStatus](t, resp)
	require.Len(t, tables, 1)
	assert.Equal(t, "A1", tables[0].TableNo)

	resp = env.do(t, http.MethodGet, "/api/queues/check-nearby/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nearby := decodeBody[[]map[string]any](t, resp)
	require.Len(t, nearby, 1)
	assert.Equal(t, second.ID, nearby[0]["id"])
	assert.Equal(t, true, nearby[0]["should_notify"])

	resp = env.do(t, http.MethodPatch, "/api/queues/free-table", service.FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	freed := decodeBody[struct {
		UpdatedQueue *models.Queue `json:"updated_queue"`
	}](t, resp)
	require.NotNil(t, freed.UpdatedQueue)
	assert.Equal(t, second.ID, freed.UpdatedQueue.ID)
	assert.Equal(t, models.StatusReadyToSeat, freed.UpdatedQueue.Status)

	resp = env.do(t, http.MethodGet, "/api/queues/history/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]models.QueueHistory](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].QueueID)

	resp = env.do(t, http.MethodGet, "/api/queues/shop/s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]models.Queue](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/queues/customer/c2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]models.Queue](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/queues/history/s1/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
}

func TestQueueErrors(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.seedTableType(t, "t1", "s1", 1)

	resp := env.do(t, http.MethodGet, "/api/queues/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/queues/free-table", service.FreeTableRequest{ShopID: "s1", TableNo: "Z9", TableTypeID: "t1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/queues", map[string]string{"shop_id": "s1", "unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/queues", service.AdmitRequest{ShopID: "s1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/queues", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/queues/notify/s1?table_type_id=t1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccountsFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	for _, c := range []struct{ typ, contact string }{{"email", "owner@shop.io"}, {"phone", "+100"}} {
		resp := env.do(t, http.MethodPost, "/api/otp/send", map[string]string{"type": c.typ, "contact": c.contact})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = env.do(t, http.MethodPost, "/api/otp/verify", map[string]string{"type": c.typ, "contact": c.contact, "code": env.codes[c.typ+":"+c.contact]})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.do(t, http.MethodPost, "/api/otp/verify", map[string]string{"type": "phone", "contact": "+100", "code": "000000"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/shops", service.RegisterShopRequest{
		Name: "Noodle Bar", Email: "owner@shop.io", PhoneNumber: "+100", Password: "secret1",
		TableTypes: []service.InitialTableType{{Type: "2-seater", Capacity: 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw := decodeBody[map[string]any](t, resp)
	assert.NotContains(t, raw, "password_hash")
	shopID := raw["id"].(string)

	resp = env.do(t, http.MethodPost, "/api/shops/login", map[string]string{"email": "owner@shop.io", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/shops/login", map[string]string{"email": "owner@shop.io", "password": "secret1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/shops/"+shopID+"/name", map[string]string{"name": "Ramen Bar"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ramen Bar", decodeBody[models.Shop](t, resp).Name)

	resp = env.do(t, http.MethodGet, "/api/table-types?shop_id="+shopID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]models.TableType](t, resp), 1)

	resp = env.do(t, http.MethodPost, "/api/table-types", service.CreateTableTypeRequest{ShopID: shopID, Type: "booth", Capacity: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tt := decodeBody[models.TableType](t, resp)
	resp = env.do(t, http.MethodGet, "/api/table-types/"+tt.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/shop-types", map[string]string{"name": "ramen"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/shop-types", map[string]string{"name": "ramen"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/customers", service.RegisterCustomerRequest{Name: "Ann", PhoneNumber: "+100", Password: "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	customer := decodeBody[models.Customer](t, resp)

	resp = env.do(t, http.MethodGet, "/api/customers/phone/+100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, customer.ID, decodeBody[models.Customer](t, resp).ID)

	resp = env.do(t, http.MethodPatch, "/api/customers/"+customer.ID+"/phone", map[string]string{"phone_number": "+999"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "new phone is not verified")
}

func (e *testEnv) sendOtp(t *testing.T, typ, contact string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/otp/send", map[string]string{"type": typ, "contact": contact})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return e.codes[typ+":"+contact]
}

func TestAccountChanges(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	for _, c := range []struct{ typ, contact string }{{"email", "owner@shop.io"}, {"phone", "+100"}} {
		code := env.sendOtp(t, c.typ, c.contact)
		resp := env.do(t, http.MethodPost, "/api/otp/verify", map[string]string{"type": c.typ, "contact": c.contact, "code": code})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPost, "/api/shops", service.RegisterShopRequest{
		Name: "Noodle Bar", Email: "owner@shop.io", PhoneNumber: "+100", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	shopID := decodeBody[models.Shop](t, resp).ID

	resp = env.do(t, http.MethodPatch, "/api/shops/"+shopID+"/address", service.ChangeAddressRequest{FullAddress: "9 Soi Ari", Lat: 13.78, Lng: 100.54})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shop := decodeBody[models.Shop](t, resp)
	assert.Equal(t, "9 Soi Ari", shop.FullAddress)
	assert.Equal(t, 100.54, shop.Lng)

	resp = env.do(t, http.MethodPatch, "/api/shops/"+shopID+"/address", service.ChangeAddressRequest{FullAddress: "x", Lng: 181})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/shops/"+shopID+"/password", map[string]string{"old_password": "secret1", "new_password": "secret2", "otp": "000000"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code := env.sendOtp(t, "phone", "+100")
	resp = env.do(t, http.MethodPatch, "/api/shops/"+shopID+"/password", map[string]string{"old_password": "secret1", "new_password": "secret2", "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/shops/login", map[string]string{"email": "owner@shop.io", "password": "secret2"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/customers", service.RegisterCustomerRequest{Name: "Ann", PhoneNumber: "+100", Email: "ann@x.io", Password: "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	customerID := decodeBody[models.Customer](t, resp).ID

	code = env.sendOtp(t, "phone", "+100")
	resp = env.do(t, http.MethodPatch, "/api/customers/"+customerID+"/password", map[string]string{"old_password": "secret1", "new_password": "secret2", "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/customers/login", map[string]string{"phone_number": "+100", "password": "secret2"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	newCode := env.sendOtp(t, "email", "ann@y.io")
	resp = env.do(t, http.MethodPatch, "/api/customers/"+customerID+"/email", map[string]string{"email": "ann@y.io", "new_otp": newCode})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "current address not confirmed")

	oldCode := env.sendOtp(t, "email", "ann@x.io")
	resp = env.do(t, http.MethodPatch, "/api/customers/"+customerID+"/email", map[string]string{"email": "ann@y.io", "old_otp": oldCode, "new_otp": newCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ann@y.io", decodeBody[models.Customer](t, resp).Email)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "r-extra", Permissions: []string{permReadQueues}},
				{Key: "admin", Extra: "a-extra"},
			},
		},
	})

	resp := env.do(t, http.MethodGet, "/api/queues", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/queues", nil, "x-api-key", "reader", "x-api-extra", "bad")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/queues", nil, "x-api-key", "reader", "x-api-extra", "r-extra")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/queues/free-table", service.FreeTableRequest{}, "x-api-key", "reader", "x-api-extra", "r-extra")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/shops", nil, "x-api-key", "admin", "x-api-extra", "a-extra")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is public")
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/queues/shop/s1", permReadQueues},
		{http.MethodPatch, "/api/queues/free-table", permWriteQueues},
		{http.MethodGet, "/api/queues/notify/s1", permWriteQueues},
		{http.MethodGet, "/api/shops/s1/events", permReadQueues},
		{http.MethodGet, "/api/shops", permReadAccounts},
		{http.MethodPost, "/api/otp/send", permWriteAccounts},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermission(r), "%s %s", tt.method, tt.path)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{
		Enabled:   true,
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2},
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodGet, "/api/shop-types", nil).StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/api/shops/s1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readUntil := func(prefix string) string {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(line)
			}
		}
		t.Fatalf("no line starting with %q", prefix)
		return ""
	}

	readUntil(": connected")
	require.Eventually(t, func() bool { return env.hub.Subscribers("s1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, env.hub.Publish(context.Background(), "s1", events.EventFreeTable, models.TableFreedEvent{TableTypeID: "t1"}))

	assert.Equal(t, "event: freeTable", readUntil("event:"))
	assert.JSONEq(t, `{"table_type_id":"t1"}`, strings.TrimPrefix(readUntil("data:"), "data: "))

	cancel()
	require.Eventually(t, func() bool { return env.hub.Subscribers("s1") == 0 }, time.Second, 10*time.Millisecond)
}

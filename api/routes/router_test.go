package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/profiles"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

type fakeRedis struct {
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeRedis) Expire(context.Context, string, time.Duration) error { return nil }

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (f *fakeRedis) SessionKey(sessionID, name string) string {
	return "sf:session:" + sessionID + ":" + name
}

type routerFixture struct {
	handler http.Handler
	shirt   *models.Product
}

func newTestRouter(t *testing.T) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "storefront-test"},
		Session: config.SessionConfig{CookieName: "sf_session", BagTTL: time.Hour},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	conn := dbtest.Open(t)
	shirt := dbtest.SeedProduct(t, conn, "Plain Shirt", "10.00", false)
	productRepo := product.NewRepository(conn)
	productSvc, err := product.NewService(productRepo)
	require.NoError(t, err)
	ordersSvc, err := orders.NewService(orders.NewRepository(conn))
	require.NoError(t, err)
	profilesSvc, err := profiles.NewService(profiles.NewRepository(conn), ordersSvc)
	require.NoError(t, err)

	redisClient := newFakeRedis()
	bagStore, err := bag.NewStore(redisClient, time.Hour)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics.NewReconcileMetrics(registry).IncOrderCreated(enums.OrderSourceCheckout)

	handler := NewRouter(
		cfg,
		logg,
		db.NewFromGorm(conn),
		redisClient,
		registry,
		productSvc,
		bagStore,
		bag.NewAggregator(pricing.Rule{}),
		productRepo,
		nil,
		ordersSvc,
		profilesSvc,
		nil,
		nil,
		nil,
	)
	return routerFixture{handler: handler, shirt: shirt}
}

func (f routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthReady(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_orders_created_total{source="checkout"} 1`)
}

func TestSessionKeepsBagAcrossRequests(t *testing.T) {
	f := newTestRouter(t)

	add := httptest.NewRequest(http.MethodPost, "/api/v1/bag/items",
		strings.NewReader(fmt.Sprintf(`{"product_id":%q,"quantity":2}`, f.shirt.ID)))
	rec := f.serve(add)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	session := rec.Header().Get("X-Session-Id")
	require.NotEmpty(t, session)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "sf_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/bag", nil)
	get.AddCookie(&http.Cookie{Name: "sf_session", Value: session})
	rec = f.serve(get)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session, rec.Header().Get("X-Session-Id"))
	assert.Contains(t, rec.Body.String(), `"product_count":2`)

	other := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/bag", nil))
	assert.Contains(t, other.Body.String(), `"product_count":0`)
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/intent", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := f.serve(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnonymousProfileIsUnauthorized(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductRoutes(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Plain Shirt")

	rec = f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+f.shirt.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/products/categories", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeWebhookBypassesSession(t *testing.T) {
	f := newTestRouter(t)

	rec := f.serve(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "stripe signature missing")
	assert.Empty(t, rec.Header().Get("X-Session-Id"))
}

func TestCORSPreflight(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bag/items", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := f.serve(req)

	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

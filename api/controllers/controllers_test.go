package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/bag"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/profiles"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

var testRule = pricing.Rule{
	FreeDeliveryThreshold:      decimal.RequireFromString("50"),
	StandardDeliveryPercentage: decimal.NewFromInt(10),
}

type memorySessions struct {
	data map[string]string
}

func (m *memorySessions) Get(_ context.Context, key string) (string, error) {
	value, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (m *memorySessions) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memorySessions) Expire(context.Context, string, time.Duration) error { return nil }

func (m *memorySessions) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memorySessions) SessionKey(sessionID, name string) string {
	return "sf:session:" + sessionID + ":" + name
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// asShopper injects the identity the session and identity middleware would resolve.
func asShopper(session bag.SessionID, username string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithSessionID(r.Context(), session)
			ctx = middleware.WithUsername(ctx, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type bagFixture struct {
	router chi.Router
	shirt  *models.Product
	hat    *models.Product
}

func newBagFixture(t *testing.T) bagFixture {
	t.Helper()
	conn := dbtest.Open(t)
	shirt := dbtest.SeedProduct(t, conn, "Plain Shirt", "10.00", false)
	hat := dbtest.SeedProduct(t, conn, "Wool Hat", "5.00", true)

	store, err := bag.NewStore(&memorySessions{data: map[string]string{}}, time.Hour)
	require.NoError(t, err)
	lookup := product.NewRepository(conn)
	aggregator := bag.NewAggregator(testRule)

	r := chi.NewRouter()
	r.Use(asShopper("session-1234", auth.AnonymousUsername))
	r.Get("/bag", GetBag(store, aggregator, lookup, nil))
	r.Post("/bag/items", AddBagItem(store, aggregator, lookup, nil))
	r.Put("/bag/items/{productId}", SetBagItemQuantity(store, aggregator, lookup, nil))
	r.Delete("/bag/items/{productId}", RemoveBagItem(store, aggregator, lookup, nil))
	return bagFixture{router: r, shirt: shirt, hat: hat}
}

func (f bagFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestBagLifecycle(t *testing.T) {
	f := newBagFixture(t)

	rec := f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":3}`, f.shirt.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":2,"size":"M"}`, f.hat.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary bag.Summary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Equal(t, 5, summary.ProductCount)
	assert.True(t, summary.Total.Equal(decimal.RequireFromString("40")), summary.Total.String())
	assert.True(t, summary.Delivery.Equal(decimal.RequireFromString("4")), summary.Delivery.String())

	rec = f.do(http.MethodPut, "/bag/items/"+f.shirt.ID.String(), `{"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodDelete, "/bag/items/"+f.hat.ID.String()+"?size=M", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/bag", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	require.Len(t, summary.Items, 1)
	assert.Equal(t, f.shirt.ID, summary.Items[0].ProductID)
	assert.Equal(t, 1, summary.ProductCount)
}

func TestAddBagItemRejectsUnknownProduct(t *testing.T) {
	f := newBagFixture(t)

	rec := f.do(http.MethodPost, "/bag/items", `{"product_id":"8c8a3f4e-9b0e-4d55-9a31-5d1f1f2f7e11","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddBagItemValidatesQuantity(t *testing.T) {
	f := newBagFixture(t)

	rec := f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":0}`, f.shirt.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeEnvelope(t, rec).Error.Code)
}

func TestAddBagItemEnforcesProductSizes(t *testing.T) {
	f := newBagFixture(t)

	rec := f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":1,"size":"XL"}`, f.shirt.ID))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, string(pkgerrors.CodeStateConflict), decodeEnvelope(t, rec).Error.Code)

	rec = f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":1}`, f.hat.ID))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, string(pkgerrors.CodeStateConflict), decodeEnvelope(t, rec).Error.Code)

	rec = f.do(http.MethodGet, "/bag", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary bag.Summary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Empty(t, summary.Items)
}

func TestSetBagItemEnforcesProductSizes(t *testing.T) {
	f := newBagFixture(t)

	rec := f.do(http.MethodPut, "/bag/items/"+f.shirt.ID.String(), `{"quantity":2,"size":"M"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPut, "/bag/items/"+f.hat.ID.String(), `{"quantity":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPut, "/bag/items/"+f.hat.ID.String(), `{"quantity":2,"size":"S"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRemoveBagItemWithoutSizeDropsSizedProduct(t *testing.T) {
	f := newBagFixture(t)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":1,"size":"S"}`, f.hat.ID)).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/bag/items", fmt.Sprintf(`{"product_id":%q,"quantity":1,"size":"L"}`, f.hat.ID)).Code)

	rec := f.do(http.MethodDelete, "/bag/items/"+f.hat.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary bag.Summary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Empty(t, summary.Items)
}

func TestSetBagItemRejectsBadProductID(t *testing.T) {
	f := newBagFixture(t)

	rec := f.do(http.MethodPut, "/bag/items/not-a-uuid", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubCheckout struct {
	shopper checkoutsvc.Shopper
	result  *checkoutsvc.SubmitResult
	err     error
}

func (s *stubCheckout) CreateIntent(_ context.Context, shopper checkoutsvc.Shopper) (*checkoutsvc.IntentResult, error) {
	s.shopper = shopper
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.IntentResult{ClientSecret: "pi_1_secret_x", IntentID: "pi_1"}, nil
}

func (s *stubCheckout) CacheCheckoutData(_ context.Context, shopper checkoutsvc.Shopper, _ checkoutsvc.CacheInput) error {
	s.shopper = shopper
	return s.err
}

func (s *stubCheckout) Submit(_ context.Context, shopper checkoutsvc.Shopper, _ checkoutsvc.SubmitInput) (*checkoutsvc.SubmitResult, error) {
	s.shopper = shopper
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func checkoutRouter(svc checkoutsvc.Service) chi.Router {
	r := chi.NewRouter()
	r.Use(asShopper("session-abcd", "ada"))
	r.Post("/checkout/intent", CheckoutIntent(svc, nil))
	r.Post("/checkout/cache", CheckoutCache(svc, nil))
	r.Post("/checkout", CheckoutSubmit(svc, nil))
	return r
}

const submitBody = `{"full_name":"Ada Lovelace","email":"ada@example.com","phone_number":"0123","country":"GB",
"town_or_city":"London","street_address1":"1 Main St","client_secret":"pi_1_secret_x","save_info":true}`

func TestCheckoutIntentPassesShopper(t *testing.T) {
	svc := &stubCheckout{}
	rec := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/intent", nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, bag.SessionID("session-abcd"), svc.shopper.Session)
	assert.Equal(t, "ada", svc.shopper.Username)
	assert.Contains(t, rec.Body.String(), "pi_1_secret_x")
}

func TestCheckoutIntentMapsGatewayFailure(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeDependency, "payment gateway temporarily unavailable")}
	rec := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/intent", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckoutCacheRequiresClientSecret(t *testing.T) {
	svc := &stubCheckout{}
	rec := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/cache", strings.NewReader(`{"save_info":true}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.shopper.Username)
}

func TestCheckoutSubmitStatusReflectsCreation(t *testing.T) {
	svc := &stubCheckout{result: &checkoutsvc.SubmitResult{Order: orders.OrderDTO{OrderNumber: "ABC"}, Created: true}}
	rec := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(submitBody)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	svc.result = &checkoutsvc.SubmitResult{Order: orders.OrderDTO{OrderNumber: "ABC"}}
	rec = httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(submitBody)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutSubmitRejectsUnknownFields(t *testing.T) {
	svc := &stubCheckout{}
	rec := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"grand_total":"1"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedOrder(t *testing.T, conn *gorm.DB, profile *models.UserProfile) *models.Order {
	t.Helper()
	order := &models.Order{
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		PhoneNumber:    "0123",
		Country:        "GB",
		TownOrCity:     "London",
		StreetAddress1: "1 Main St",
		OriginalBag:    "{}",
		StripePID:      "pi_seeded",
	}
	if profile != nil {
		order.UserProfileID = &profile.ID
	}
	_, err := orders.NewRepository(conn).Create(context.Background(), order)
	require.NoError(t, err)
	return order
}

func TestGetOrderByNumber(t *testing.T) {
	conn := dbtest.Open(t)
	order := seedOrder(t, conn, nil)
	svc, err := orders.NewService(orders.NewRepository(conn))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/orders/{orderNumber}", GetOrder(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+strings.ToLower(order.OrderNumber), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), order.OrderNumber)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/MISSING", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func profileRouter(t *testing.T, username string) chi.Router {
	t.Helper()
	conn := dbtest.Open(t)
	orderSvc, err := orders.NewService(orders.NewRepository(conn))
	require.NoError(t, err)
	svc, err := profiles.NewService(profiles.NewRepository(conn), orderSvc)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(asShopper("session-prof", username))
	r.Get("/profile", GetProfile(svc, nil))
	r.Put("/profile", UpdateProfile(svc, nil))
	return r
}

func TestProfileRequiresSignedInShopper(t *testing.T) {
	r := profileRouter(t, auth.AnonymousUsername)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfileDefaults(t *testing.T) {
	r := profileRouter(t, "ada")

	rec := httptest.NewRecorder()
	body := `{"default_phone_number":" 0123 ","default_town_or_city":"London","default_country":"gb"}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/profile", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var profile profiles.ProfileDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &profile))
	assert.Equal(t, "ada", profile.Username)
	assert.Equal(t, "0123", profile.Defaults.PhoneNumber)
	assert.Equal(t, "GB", profile.Defaults.Country)
	assert.Empty(t, profile.Orders)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Storefront-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis unavailable")
}

func TestListProductsValidatesLimit(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedProduct(t, conn, "Plain Shirt", "10.00", false)
	svc, err := product.NewService(product.NewRepository(conn))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ListProducts(svc, nil)(rec, httptest.NewRequest(http.MethodGet, "/products?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ListProducts(svc, nil)(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Plain Shirt")
}

package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/app/dto"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/service"
	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/vehicle"
	"rentacar/internal/infra/obs"
	"rentacar/internal/infra/storage/memory"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, checks map[string]obs.Check) *gin.Engine {
	t.Helper()
	policy, err := pricing.NewPolicy("p1", "CDMR", "", money.MustFromNet("50.00", "0.19", "EUR"), time.Time{}, time.Time{})
	require.NoError(t, err)
	box := memory.NewOutbox(func(context.Context, outbox.EventRecord) error { return nil })
	svc := service.New(service.Deps{
		UoWFactory: memory.NewFactory(memory.NewReservationStore(), box),
		Vehicles: memory.NewVehicleCatalog([]vehicle.Vehicle{
			{ID: "v1", Make: "VW", Model: "Golf", CategoryCode: "CDMR", LocationCode: "MUC", Status: vehicle.StatusAvailable, CreatedAt: now},
			{ID: "v2", Make: "Fiat", Model: "Ducato", CategoryCode: "XVAN", LocationCode: "MUC", Status: vehicle.StatusAvailable, CreatedAt: now},
		}),
		Customers: memory.NewCustomerDirectory([]customer.Customer{
			{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)},
		}),
		Pricing:        memory.PolicyCalculator{Table: pricing.PolicyTable{policy}},
		Idempotency:    memory.NewIdempotencyStore(),
		IdempotencyTTL: time.Hour,
		Flusher:        box,
		Clock:          func() time.Time { return now },
	})
	limits := PageLimits{Default: 20, Max: 50}
	return NewRouter(obs.Middleware{}, obs.HealthHandlers{Checks: checks}, Handlers{
		Reservations: ReservationHandler{Commands: svc.Commands, Queries: svc.Queries, Limits: limits},
		Availability: AvailabilityHandler{Queries: svc.Queries},
		Catalog:      CatalogHandler{Queries: svc.Queries, Limits: limits},
	})
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createBody(vehicleID, pickup, ret string) map[string]string {
	return map[string]string{
		"vehicle_id":  vehicleID,
		"customer_id": "c1",
		"pickup_date": pickup,
		"return_date": ret,
	}
}

func TestCreateReservation(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodPost, "/api/v1/reservations", createBody("v1", "2026-06-08", "2026-06-11"))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[dto.Reservation](t, rec)
	assert.Equal(t, "PENDING", res.Status)
	assert.Equal(t, 4, res.Days)
	assert.Equal(t, "238.00", res.TotalPrice.Gross)
	assert.Equal(t, "/api/v1/reservations/"+res.ID, rec.Header().Get("Location"))

	rec = do(t, router, http.MethodGet, "/api/v1/reservations/"+res.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, res.ID, decode[dto.Reservation](t, rec).ID)
}

func TestCreateReservation_IdempotencyKeyReplays(t *testing.T) {
	router := newTestRouter(t, nil)
	body := createBody("v1", "2026-06-08", "2026-06-11")

	first := do(t, router, http.MethodPost, "/api/v1/reservations", body, headerIdempotencyKey, "k-1")
	second := do(t, router, http.MethodPost, "/api/v1/reservations", body, headerIdempotencyKey, "k-1")

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode[dto.Reservation](t, first).ID, decode[dto.Reservation](t, second).ID)
}

func TestLifecycleAndConflicts(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(t, router, http.MethodPost, "/api/v1/reservations", createBody("v1", "2026-06-08", "2026-06-11"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dto.Reservation](t, rec).ID

	rec = do(t, router, http.MethodPost, "/api/v1/reservations/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CONFIRMED", decode[dto.Reservation](t, rec).Status)

	rec = do(t, router, http.MethodPost, "/api/v1/reservations", createBody("v1", "2026-06-11", "2026-06-12"))
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, CodeAlreadyBooked, body["code"])
	assert.Equal(t, "v1", body["vehicle_id"])

	rec = do(t, router, http.MethodPost, "/api/v1/reservations/"+id+"/complete", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidTransition, decode[map[string]any](t, rec)["code"])

	rec = do(t, router, http.MethodPost, "/api/v1/reservations/"+id+"/cancel", map[string]string{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[dto.Reservation](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancellationReason)
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := map[string]struct {
		method string
		path   string
		body   any
		status int
		code   string
	}{
		"unknown reservation": {http.MethodGet, "/api/v1/reservations/missing", nil, http.StatusNotFound, CodeNotFound},
		"malformed date": {http.MethodPost, "/api/v1/reservations", createBody("v1", "08.06.2026", "2026-06-11"),
			http.StatusBadRequest, CodeBadRequest},
		"return before pickup": {http.MethodPost, "/api/v1/reservations", createBody("v1", "2026-06-11", "2026-06-08"),
			http.StatusBadRequest, CodeInvalidPeriod},
		"no pricing policy": {http.MethodPost, "/api/v1/reservations", createBody("v2", "2026-06-08", "2026-06-11"),
			http.StatusUnprocessableEntity, CodeNoPricingPolicy},
		"unknown sort field": {http.MethodGet, "/api/v1/reservations?sort=colour", nil, http.StatusBadRequest, CodeUnknownSortField},
		"missing availability bounds": {http.MethodGet, "/api/v1/availability?pickup=2026-06-08", nil,
			http.StatusBadRequest, CodeBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[map[string]any](t, rec)["code"])
		})
	}
}

func TestClassify_InFlightRequestIsConflict(t *testing.T) {
	class := classify(fmt.Errorf("create: %w", middleware.ErrRequestInFlight))

	assert.Equal(t, http.StatusConflict, class.status)
	assert.Equal(t, CodeRequestInFlight, class.code)
}

func TestSearchAndAvailability(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(t, router, http.MethodPost, "/api/v1/reservations", createBody("v1", "2026-06-08", "2026-06-11"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dto.Reservation](t, rec).ID

	rec = do(t, router, http.MethodGet, "/api/v1/reservations?customer_id=c1&status=PENDING&page_size=500", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[dto.Page[dto.Reservation]](t, rec)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 50, page.PageSize)

	rec = do(t, router, http.MethodGet, "/api/v1/availability?pickup=2026-06-09&return=2026-06-10&vehicle_id=v1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[dto.Availability](t, rec)
	assert.Empty(t, avail.BookedVehicleIDs, "pending reservations do not block")
	require.NotNil(t, avail.Available)
	assert.True(t, *avail.Available)

	rec = do(t, router, http.MethodPost, "/api/v1/reservations/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/availability?pickup=2026-06-09&return=2026-06-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"v1"}, decode[dto.Availability](t, rec).BookedVehicleIDs)
}

func TestCatalogEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/api/v1/vehicles?category=CDMR", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	vehicles := decode[dto.Page[dto.Vehicle]](t, rec)
	require.Len(t, vehicles.Items, 1)
	assert.Equal(t, "v1", vehicles.Items[0].ID)

	rec = do(t, router, http.MethodGet, "/api/v1/customers?name=ada", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[dto.Page[dto.Customer]](t, rec).TotalCount)

	rec = do(t, router, http.MethodPost, "/api/v1/quotes", map[string]string{
		"vehicle_id":  "v1",
		"pickup_date": "2026-06-08",
		"return_date": "2026-06-09",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "100.00", decode[dto.QuoteDTO](t, rec).Total.Net)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, map[string]obs.Check{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := do(t, router, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRequestIDEchoed(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/livez", nil, obs.HeaderRequestID, "req-42")

	assert.Equal(t, "req-42", rec.Header().Get(obs.HeaderRequestID))
}

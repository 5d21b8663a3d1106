package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/tripmanager/internal/clock"
	"github.com/viant/tripmanager/internal/idgen"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/auth"
	"github.com/viant/tripmanager/service/coordinator"
	"github.com/viant/tripmanager/service/index"
	"github.com/viant/tripmanager/service/index/memory"
	"github.com/viant/tripmanager/service/registry/registrytest"
	"github.com/viant/tripmanager/service/trigger"
)

func fixedClock(t *testing.T) {
	t.Helper()
	now, idNow := clock.NowFunc, idgen.NewFunc
	clock.NowFunc = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	idgen.NewFunc = func() string { return "run-1" }
	t.Cleanup(func() {
		clock.NowFunc, idgen.NewFunc = now, idNow
	})
}

func do(handler http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestHandler_Golden(t *testing.T) {
	fixedClock(t)
	fake := registrytest.New()
	handler := New(coordinator.New(fake))
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	started := do(handler, http.MethodPost, "/tripmanagers", `{"code":"TRIP-001","trip":{"pickup":"A","dropoff":"B"}}`)
	require.Equal(t, http.StatusOK, started.Code)
	g.Assert(t, "start", started.Body.Bytes())

	status := do(handler, http.MethodGet, "/tripmanagers/TRIP-001", "")
	require.Equal(t, http.StatusOK, status.Code)
	g.Assert(t, "status", status.Body.Bytes())

	missing := do(handler, http.MethodGet, "/tripmanagers/TRIP-999", "")
	require.Equal(t, http.StatusBadRequest, missing.Code)
	g.Assert(t, "status_not_found", missing.Body.Bytes())
}

func TestHandler_Routes(t *testing.T) {
	fake := registrytest.New()
	fake.SetStatus("TRIP-RUN", instance.StatusRunning)
	fake.SetStatus("TRIP-DONE", instance.StatusCompleted)
	handler := New(coordinator.New(fake))

	testCases := []struct {
		description string
		method      string
		target      string
		body        string
		expectCode  int
		expectBody  string
	}{
		{description: "start", method: http.MethodPost, target: "/tripmanagers", body: `{"code":"TRIP-NEW"}`, expectCode: http.StatusOK, expectBody: `"outcome": "Started"`},
		{description: "start running", method: http.MethodPost, target: "/tripmanagers", body: `{"code":"TRIP-RUN"}`, expectCode: http.StatusOK, expectBody: `"outcome": "AlreadyRunning"`},
		{description: "start invalid json", method: http.MethodPost, target: "/tripmanagers", body: `{"code":`, expectCode: http.StatusBadRequest, expectBody: `invalid input`},
		{description: "start missing code", method: http.MethodPost, target: "/tripmanagers", body: `{"trip":{}}`, expectCode: http.StatusBadRequest, expectBody: `code is required`},
		{description: "start empty body", method: http.MethodPost, target: "/tripmanagers", expectCode: http.StatusBadRequest},
		{description: "acknowledge running", method: http.MethodPost, target: "/tripmanagers/TRIP-RUN/acknowledge/drivers/DRV-42", expectCode: http.StatusOK, expectBody: `"outcome": "Delivered"`},
		{description: "acknowledge completed", method: http.MethodPost, target: "/tripmanagers/TRIP-DONE/acknowledge/drivers/DRV-42", expectCode: http.StatusOK, expectBody: `"outcome": "Dropped"`},
		{description: "terminate completed", method: http.MethodPost, target: "/tripmanagers/TRIP-DONE/terminate", expectCode: http.StatusBadRequest, expectBody: `trip manager not found`},
		{description: "terminate bad body", method: http.MethodPost, target: "/tripmanagers/TRIP-RUN/terminate", body: `[`, expectCode: http.StatusBadRequest},
		{description: "list running", method: http.MethodGet, target: "/tripmanagers?status=running", expectCode: http.StatusOK, expectBody: `"key": "TRIP-RUN"`},
		{description: "list unknown status", method: http.MethodGet, target: "/tripmanagers?status=paused", expectCode: http.StatusBadRequest},
		{description: "terminate unknown", method: http.MethodPost, target: "/tripmanagers/TRIP-404/terminate", expectCode: http.StatusBadRequest, expectBody: `trip manager not found`},
		{description: "active disabled", method: http.MethodGet, target: "/active/tripmanagers", expectCode: http.StatusBadRequest},
		{description: "healthz", method: http.MethodGet, target: "/healthz", expectCode: http.StatusOK, expectBody: `"status": "ok"`},
		{description: "metrics disabled", method: http.MethodGet, target: "/metrics", expectCode: http.StatusNotFound},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			recorder := do(handler, testCase.method, testCase.target, testCase.body)
			assert.Equal(t, testCase.expectCode, recorder.Code, recorder.Body.String())
			if testCase.expectBody != "" {
				assert.Contains(t, recorder.Body.String(), testCase.expectBody)
			}
		})
	}
}

func TestHandler_Terminate(t *testing.T) {
	fake := registrytest.New()
	fake.SetStatus("TRIP-001", instance.StatusRunning)
	fake.SetStatus("TRIP-002", instance.StatusRunning)
	handler := New(coordinator.New(fake))

	recorder := do(handler, http.MethodPost, "/tripmanagers/TRIP-001/terminate", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	anInstance, err := fake.Status(context.Background(), "TRIP-001")
	require.NoError(t, err)
	assert.Equal(t, trigger.DefaultTerminateReason, anInstance.Reason)

	recorder = do(handler, http.MethodPost, "/tripmanagers/TRIP-002/terminate", `{"reason":"rider cancelled"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	anInstance, err = fake.Status(context.Background(), "TRIP-002")
	require.NoError(t, err)
	assert.Equal(t, "rider cancelled", anInstance.Reason)
}

func TestHandler_Auth(t *testing.T) {
	fake := registrytest.New()
	validator := auth.ValidatorFunc(func(ctx context.Context, request *http.Request) (*auth.User, error) {
		if auth.BearerToken(request) == "secret" {
			return &auth.User{Subject: "dispatcher"}, nil
		}
		return nil, errors.New("invalid token")
	})
	handler := New(coordinator.New(fake), WithAuth(true, validator))

	recorder := do(handler, http.MethodPost, "/tripmanagers", `{"code":"TRIP-001"}`)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, 0, fake.Calls().Status)

	recorder = do(handler, http.MethodPost, "/tripmanagers", `{"code":"TRIP-001"}`, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, fake.Calls().Create)

	recorder = do(handler, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestHandler_ActiveAndMetrics(t *testing.T) {
	idx := memory.New()
	require.NoError(t, idx.Put(context.Background(), &index.Entry{Key: "TRIP-001", RunID: "r1", Status: instance.StatusRunning}))
	reg := prometheus.NewRegistry()
	metrics := coordinator.NewMetrics(reg)
	fake := registrytest.New()
	fake.SetStatus("active", instance.StatusRunning)
	handler := New(coordinator.New(fake, coordinator.WithMetrics(metrics)), WithIndex(idx), WithGatherer(reg))

	recorder := do(handler, http.MethodGet, "/active/tripmanagers", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"key": "TRIP-001"`)

	recorder = do(handler, http.MethodGet, "/tripmanagers/active", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"key": "active"`)

	do(handler, http.MethodPost, "/tripmanagers", `{"code":"TRIP-002"}`)
	recorder = do(handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `tripmanager_operations_total{operation="start",outcome="Started"} 1`)
}

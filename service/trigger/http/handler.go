// Package http exposes the coordinator over a JSON REST API
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/auth"
	"github.com/viant/tripmanager/service/coordinator"
	"github.com/viant/tripmanager/service/index"
	"github.com/viant/tripmanager/service/trigger"
	"github.com/viant/tripmanager/tracing"
)

const maxBodySize = 1 << 20

// Handler routes trip manager requests to the coordinator. Every failure
// is reported as 400, failed authentication as 401.
type Handler struct {
	coordinator trigger.Coordinator
	authEnabled bool
	validator   auth.Validator
	index       index.Index
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	mux         *http.ServeMux
}

// New creates a handler
func New(c trigger.Coordinator, options ...Option) *Handler {
	h := &Handler{coordinator: c, logger: slog.Default(), mux: http.NewServeMux()}
	for _, opt := range options {
		opt(h)
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	protect := auth.Middleware(h.authEnabled, h.validator, h.logger)
	handle := func(pattern string, fn http.HandlerFunc) {
		h.mux.Handle(pattern, h.traced(pattern, protect(fn)))
	}
	handle("POST /tripmanagers", h.start)
	handle("GET /tripmanagers", h.list)
	handle("GET /tripmanagers/{code}", h.status)
	handle("POST /tripmanagers/{code}/terminate", h.terminate)
	handle("POST /tripmanagers/{code}/acknowledge/drivers/{driverCode}", h.acknowledge)
	handle("GET /active/tripmanagers", h.active)

	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) traced(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), "http "+pattern, tracing.KindServer)
		span.WithAttributes(map[string]string{"http.method": r.Method, "http.path": r.URL.Path})
		recorder := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetStatusFromHTTPCode(recorder.code)
		tracing.EndSpan(span, nil)
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	message := &trigger.StartMessage{}
	if err := decode(r, message, false); err != nil {
		h.fail(w, r, err)
		return
	}
	outcome, err := trigger.Start(r.Context(), h.coordinator, message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text := "trip manager started"
	if outcome == coordinator.AlreadyRunning {
		text = "trip manager already running"
	}
	writeJSON(w, http.StatusOK, &Response{Message: text, Code: message.Code, Outcome: string(outcome)})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	anInstance, err := h.coordinator.GetStatus(r.Context(), instance.Key(r.PathValue("code")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, anInstance)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	request := &struct {
		Reason string `json:"reason"`
	}{}
	if err := decode(r, request, true); err != nil {
		h.fail(w, r, err)
		return
	}
	reason := strings.TrimSpace(request.Reason)
	if reason == "" {
		reason = trigger.DefaultTerminateReason
	}
	outcome, err := h.coordinator.Terminate(r.Context(), instance.Key(code), reason)
	if err == nil && outcome == coordinator.NotFound {
		err = fmt.Errorf("%w: %v is not active", coordinator.ErrNotFound, code)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &Response{Message: "trip manager terminated", Code: code, Outcome: string(outcome)})
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	message := &trigger.AcknowledgeMessage{TripKey: r.PathValue("code"), DriverKey: r.PathValue("driverCode")}
	delivery, err := trigger.Acknowledge(r.Context(), h.coordinator, message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text := "driver acknowledgement delivered"
	if delivery == coordinator.Dropped {
		text = "driver acknowledgement dropped"
	}
	writeJSON(w, http.StatusOK, &Response{Message: text, Code: message.TripKey, Outcome: string(delivery)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.coordinator.(trigger.Lister)
	if !ok {
		h.fail(w, r, errors.New("listing is not supported"))
		return
	}
	var statuses []instance.Status
	for _, value := range r.URL.Query()["status"] {
		for _, item := range strings.Split(value, ",") {
			status, ok := instance.ParseStatus(strings.TrimSpace(item))
			if !ok {
				h.fail(w, r, fmt.Errorf("%w: unknown status %q", trigger.ErrInvalidInput, item))
				return
			}
			statuses = append(statuses, status)
		}
	}
	instances, err := lister.List(r.Context(), statuses...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if instances == nil {
		instances = []*instance.Instance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		h.fail(w, r, errors.New("active index is disabled"))
		return
	}
	entries, err := h.index.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []*index.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadRequest, err)
}

// decode reads a JSON body into target; an empty body is accepted when optional
func decode(r *http.Request, target interface{}, optional bool) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %w", trigger.ErrInvalidInput, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body is required", trigger.ErrInvalidInput)
	}
	if err = json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %w", trigger.ErrInvalidInput, err)
	}
	return nil
}

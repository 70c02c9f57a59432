package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/incubator-intake/internal/applications"
	"github.com/eugenenazirov/incubator-intake/internal/metrics"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultMaxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON object")

// ApplicationStore is the subset of the application store used by the handlers.
type ApplicationStore interface {
	Upsert(input applications.Application) (applications.Application, bool, error)
	GetByID(id string) (applications.Application, error)
	Len() int
}

// Handler wires the application store into HTTP handlers.
type Handler struct {
	store   ApplicationStore
	metrics *metrics.Metrics
	logger  *zap.Logger

	clock        func() time.Time
	maxBodyBytes int64
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHandlerLogger sets the logger used for lookup and upsert warnings.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerMetrics records upsert and lookup outcomes on m.
func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithMaxBodyBytes caps the size of accepted request bodies.
func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store ApplicationStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:  store,
		logger: zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics.SetRecords(store.Len())
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:       "ok",
		Timestamp:    h.clock(),
		Applications: h.store.Len(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpsertApplication(w http.ResponseWriter, r *http.Request) {
	var input applications.Application
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := decodeSingleValue(body, &input); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
				fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit))
		case errors.Is(err, applications.ErrInvalidPayload):
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		default:
			writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		}
		return
	}

	saved, created, err := h.store.Upsert(input)
	if err != nil {
		if errors.Is(err, applications.ErrNotFound) {
			h.metrics.RecordUpsert(metrics.OutcomeNotFound)
			h.logger.Warn("upsert for unknown application",
				zap.String("application_id", input.ID),
				zap.String("request_id", requestIDFromContext(r.Context())),
			)
			writeError(w, http.StatusNotFound, "Application not found",
				fmt.Sprintf("no application with id %q; omit id to create a new one", input.ID))
			return
		}
		h.metrics.RecordUpsert(metrics.OutcomeError)
		h.logger.Error("upsert failed", zap.Error(err))
		writeInternalError(w, err)
		return
	}

	if created {
		h.metrics.RecordUpsert(metrics.OutcomeCreated)
	} else {
		h.metrics.RecordUpsert(metrics.OutcomeUpdated)
	}
	h.metrics.SetRecords(h.store.Len())

	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	app, err := h.store.GetByID(id)
	if err != nil {
		if errors.Is(err, applications.ErrNotFound) {
			h.metrics.RecordLookup(false)
			h.logger.Warn("could not find application",
				zap.String("application_id", id),
				zap.String("request_id", requestIDFromContext(r.Context())),
			)
			// a miss is reported as an empty object, not a 404
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		writeInternalError(w, err)
		return
	}

	h.metrics.RecordLookup(true)
	h.logger.Debug("got application", zap.String("application_id", app.ID))
	writeJSON(w, http.StatusOK, app)
}

// decodeSingleValue decodes exactly one JSON value from r; anything after it
// other than whitespace is rejected.
func decodeSingleValue(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errTrailingData
	}
	return nil
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Applications int       `json:"applications"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

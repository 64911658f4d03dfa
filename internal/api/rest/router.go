package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
	"github.com/oshokin/pump-monitor/internal/repository/battery"
	"github.com/oshokin/pump-monitor/internal/session"
	"github.com/oshokin/pump-monitor/internal/sink"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 10

// errBadBody is returned for undecodable request bodies.
var errBadBody = errors.New("invalid request body")

// Controller is the subset of the serial session the API drives.
type Controller interface {
	ID() string
	Connect(ctx context.Context, candidates []string) (string, error)
	Disconnect()
	SetAuto(ctx context.Context) error
	SubmitPower(ctx context.Context, text string) error
	Silence() bool
	SetUserAdjusting(adjusting bool) pump.Snapshot
	ResetBattery(level float64) pump.Snapshot
	Snapshot() pump.Snapshot
}

// Options configures the router.
type Options struct {
	// Controller receives the operator intents.
	Controller Controller
	// Ports are the default connect candidates.
	Ports []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Battery persists battery resets when set.
	Battery battery.Repository
	// Now returns the time recorded with battery resets.
	Now func() time.Time
}

// handler holds the route dependencies.
type handler struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used for logging.
	// opts are the router options.
	opts Options
}

// connectRequest is the optional body of POST /connect.
type connectRequest struct {
	Ports []string `json:"ports"`
}

// powerRequest is the body of POST /commands/power. Power may be a number
// or the raw text typed by the operator.
type powerRequest struct {
	Power json.RawMessage `json:"power"`
}

// adjustingRequest is the body of PUT /adjusting.
type adjustingRequest struct {
	Adjusting bool `json:"adjusting"`
}

// batteryRequest is the optional body of POST /battery/reset.
type batteryRequest struct {
	Level *float64 `json:"level"`
}

// NewRouter builds the HTTP API.
func NewRouter(ctx context.Context, opts Options) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	h := &handler{
		ctx:  logger.WithName(ctx, "rest"),
		opts: opts,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", h.handleHealth)
	r.Get("/snapshot", h.handleSnapshot)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Post("/alarm/silence", h.handleSilence)
	r.Post("/commands/auto", h.handleAuto)
	r.Post("/commands/power", h.handlePower)
	r.Post("/connect", h.handleConnect)
	r.Post("/disconnect", h.handleDisconnect)
	r.Put("/adjusting", h.handleAdjusting)
	r.Post("/battery/reset", h.handleBatteryReset)

	return r
}

// logRequests logs every request at debug level.
func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.DebugKV(h.ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := h.opts.Controller.Snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"session":   h.opts.Controller.ID(),
		"connected": snap.Connection.IsConnected(),
		"alarm":     snap.Alarm.String(),
	})
}

func (h *handler) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	h.writeSnapshot(w, http.StatusOK, h.opts.Controller.Snapshot())
}

func (h *handler) handleSilence(w http.ResponseWriter, _ *http.Request) {
	silenced := h.opts.Controller.Silence()

	writeJSON(w, http.StatusOK, map[string]bool{"silenced": silenced})
}

func (h *handler) handleAuto(w http.ResponseWriter, r *http.Request) {
	if err := h.opts.Controller.SetAuto(r.Context()); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}

	h.writeSnapshot(w, http.StatusOK, h.opts.Controller.Snapshot())
}

func (h *handler) handlePower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Strings are passed through unquoted so the session sees what was typed.
	text := strings.Trim(string(req.Power), `"`)

	if err := h.opts.Controller.SubmitPower(r.Context(), text); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}

	h.writeSnapshot(w, http.StatusOK, h.opts.Controller.Snapshot())
}

func (h *handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ports := req.Ports
	if len(ports) == 0 {
		ports = h.opts.Ports
	}

	id, err := h.opts.Controller.Connect(r.Context(), ports)

	switch {
	case errors.Is(err, session.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, session.ErrNoPortAvailable):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"port": id})
	}
}

func (h *handler) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	h.opts.Controller.Disconnect()

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleAdjusting(w http.ResponseWriter, r *http.Request) {
	var req adjustingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.writeSnapshot(w, http.StatusOK, h.opts.Controller.SetUserAdjusting(req.Adjusting))
}

func (h *handler) handleBatteryReset(w http.ResponseWriter, r *http.Request) {
	var req batteryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	level := float64(pump.FullBattery)
	if req.Level != nil {
		level = *req.Level
	}

	snap := h.opts.Controller.ResetBattery(level)

	if h.opts.Battery != nil {
		record := &battery.Record{Level: snap.Battery, Timestamp: h.opts.Now()}
		if err := h.opts.Battery.Save(r.Context(), record); err != nil {
			logger.WarnKV(h.ctx, "Battery level not persisted", "error", err)
		}
	}

	h.writeSnapshot(w, http.StatusOK, snap)
}

// writeSnapshot writes snap in its published JSON form.
func (h *handler) writeSnapshot(w http.ResponseWriter, status int, snap pump.Snapshot) {
	data, err := sink.Encode(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		logger.DebugKV(h.ctx, "Response not written", "error", err)
	}
}

// commandStatus maps a command error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidPower), errors.Is(err, pump.ErrPowerOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}

	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Client went away.
}

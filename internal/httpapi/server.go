package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/domain"
	apimw "github.com/hamed0406/portwatch/internal/httpapi/middleware"
	"github.com/hamed0406/portwatch/internal/probe"
	"github.com/hamed0406/portwatch/internal/registry"
)

// Defaults fill in omitted fields of an add request.
type Defaults struct {
	PollingInterval time.Duration
	GracePeriod     time.Duration
}

type Server struct {
	Logger   *zap.Logger
	Registry *registry.Registry
	Prober   probe.Prober
	Defaults Defaults
}

func NewServer(l *zap.Logger, reg *registry.Registry, p probe.Prober, d Defaults) *Server {
	return &Server{Logger: l, Registry: reg, Prober: p, Defaults: d}
}

// Router mounts the API. Reads need any key, writes an admin key; each
// group has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLog(s.Logger))
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/endpoints", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(pubRPM, pubBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/", s.handleList)
			r.Get("/{endpoint}", s.handleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(admRPM, admBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/", s.handleAdd)
			r.Delete("/{endpoint}", s.handleRemove)
			r.Put("/{endpoint}/interval", s.handleSetInterval)
			r.Put("/{endpoint}/grace", s.handleSetGrace)
			r.Put("/{endpoint}/outage", s.handleSetOutage)
			r.Delete("/{endpoint}/outage", s.handleClearOutage)
			r.Post("/{endpoint}/pause", s.handlePause)
			r.Post("/{endpoint}/resume", s.handleResume)
		})
	})

	return r
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps registry errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrDuplicateEndpoint):
		return http.StatusConflict
	case errors.Is(err, registry.ErrUnknownEndpoint):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.Logger.Error("api_error", zap.String("op", op), zap.Error(err))
		writeError(w, code, op+" failed")
		return
	}
	writeError(w, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return false
	}
	return true
}

// endpointParam parses the {endpoint} path segment ("host:port").
func endpointParam(w http.ResponseWriter, r *http.Request) (domain.Endpoint, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "endpoint"))
	if err == nil {
		var ep domain.Endpoint
		if ep, err = domain.ParseEndpoint(raw); err == nil {
			return ep, true
		}
	}
	writeError(w, http.StatusBadRequest, "endpoint must be host:port")
	return domain.Endpoint{}, false
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

const maxMS = math.MaxInt64 / int64(time.Millisecond)

// msToDuration rejects values that would overflow time.Duration.
func msToDuration(field string, ms int64) (time.Duration, error) {
	if ms > maxMS || ms < -maxMS {
		return 0, fmt.Errorf("%w: %s %d out of range", registry.ErrInvalidConfig, field, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ---- handlers ----

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos := s.Registry.List()
	out := make([]endpointDTO, 0, len(infos))
	for _, in := range infos {
		out = append(out, toDTO(in))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	s.respond(w, "get", ep)
}

// respond writes the current view of ep.
func (s *Server) respond(w http.ResponseWriter, op string, ep domain.Endpoint) {
	info, err := s.Registry.Get(ep)
	if err != nil {
		s.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(info))
}

type addPayload struct {
	Host          string         `json:"host"`
	Port          int            `json:"port"`
	IntervalMS    int64          `json:"interval_ms"`
	GracePeriodMS *int64         `json:"grace_period_ms"`
	Outage        *outagePayload `json:"outage,omitempty"`
}

type outagePayload struct {
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`
}

type addResponse struct {
	Endpoint endpointDTO `json:"endpoint"`
	Probe    probeDTO    `json:"probe"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if !decode(w, r, &p) {
		return
	}

	spec := domain.EndpointSpec{
		Endpoint:        domain.Endpoint{Host: p.Host, Port: p.Port},
		PollingInterval: s.Defaults.PollingInterval,
		GracePeriod:     s.Defaults.GracePeriod,
	}
	var err error
	if p.IntervalMS != 0 {
		if spec.PollingInterval, err = msToDuration("interval_ms", p.IntervalMS); err != nil {
			s.fail(w, "add", err)
			return
		}
	}
	if p.GracePeriodMS != nil {
		if spec.GracePeriod, err = msToDuration("grace_period_ms", *p.GracePeriodMS); err != nil {
			s.fail(w, "add", err)
			return
		}
	}
	if p.Outage != nil {
		spec.Outage = &domain.OutageWindow{Start: msToTime(p.Outage.StartMS), End: msToTime(p.Outage.EndMS)}
	}

	mon, err := s.Registry.Add(r.Context(), spec)
	if err != nil {
		s.fail(w, "add", err)
		return
	}
	ep := mon.Endpoint()

	// one probe up front for immediate feedback; the monitor's own
	// schedule is unaffected
	var res probe.Result
	if s.Prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		res = s.Prober.Probe(ctx, ep.Host, ep.Port)
		cancel()
	}

	info, err := s.Registry.Get(ep)
	if err != nil {
		s.fail(w, "add", err)
		return
	}
	s.Logger.Info("api_endpoint_added",
		zap.String("endpoint", ep.String()),
		zap.Bool("reachable", res.Reachable),
		zap.Float64("latency_ms", res.LatencyMS),
	)
	writeJSON(w, http.StatusCreated, addResponse{Endpoint: toDTO(info), Probe: toProbeDTO(res)})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	if err := s.Registry.Remove(r.Context(), ep); err != nil {
		s.fail(w, "remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type durationPayload struct {
	MS *int64 `json:"ms"`
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	s.setDuration(w, r, "set interval", s.Registry.SetPollingInterval)
}

func (s *Server) handleSetGrace(w http.ResponseWriter, r *http.Request) {
	s.setDuration(w, r, "set grace", s.Registry.SetGracePeriod)
}

func (s *Server) setDuration(w http.ResponseWriter, r *http.Request, op string,
	set func(context.Context, domain.Endpoint, time.Duration) error) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	var p durationPayload
	if !decode(w, r, &p) {
		return
	}
	if p.MS == nil {
		writeError(w, http.StatusBadRequest, "ms is required")
		return
	}
	d, err := msToDuration("ms", *p.MS)
	if err == nil {
		err = set(r.Context(), ep, d)
	}
	if err != nil {
		s.fail(w, op, err)
		return
	}
	s.respond(w, op, ep)
}

func (s *Server) handleSetOutage(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	var p outagePayload
	if !decode(w, r, &p) {
		return
	}
	if err := s.Registry.SetOutageWindow(r.Context(), ep, msToTime(p.StartMS), msToTime(p.EndMS)); err != nil {
		s.fail(w, "set outage", err)
		return
	}
	s.respond(w, "set outage", ep)
}

func (s *Server) handleClearOutage(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	if err := s.Registry.ClearOutageWindow(r.Context(), ep); err != nil {
		s.fail(w, "clear outage", err)
		return
	}
	s.respond(w, "clear outage", ep)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	if err := s.Registry.Pause(ep); err != nil {
		s.fail(w, "pause", err)
		return
	}
	s.respond(w, "pause", ep)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpointParam(w, r)
	if !ok {
		return
	}
	if err := s.Registry.Resume(ep); err != nil {
		s.fail(w, "resume", err)
		return
	}
	s.respond(w, "resume", ep)
}

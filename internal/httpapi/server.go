package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/metrics"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
)

type Dependencies struct {
	Logger      *slog.Logger
	Addr        string
	Service     *service.AccreditationService
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	svc        *service.AccreditationService
	metrics    *metrics.Metrics
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:  d.Logger.With("component", "http"),
		mux:     mux,
		svc:     d.Service,
		metrics: d.Metrics,
	}

	mux.HandleFunc("POST /v1/accreditations", s.handleCreate)
	mux.HandleFunc("GET /v1/accreditations", s.handleList)
	mux.HandleFunc("GET /v1/accreditations/{id}", s.handleGet)
	mux.HandleFunc("PATCH /v1/accreditations/{id}", s.handleChangeStatus)
	mux.HandleFunc("POST /v1/accreditations/{id}/zone-actions", s.handleZoneAction)
	mux.HandleFunc("POST /v1/accreditations/{id}/transfer", s.handleTransfer)
	mux.HandleFunc("GET /v1/accreditations/{id}/time-slots", s.handleTimeSlots)
	mux.HandleFunc("GET /v1/accreditations/{id}/movements", s.handleMovements)
	mux.HandleFunc("GET /v1/accreditations/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /v1/zones", s.handleZones)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", d.Metrics.Handler())

	var handler http.Handler = mux
	handler = corsMiddleware(d.CORSOrigins, handler)
	handler = metricsMiddleware(d.Metrics, handler)
	handler = loggingMiddleware(s.logger, handler)
	handler = recoveryMiddleware(s.logger, handler)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"VaultCore/internal/engine"
	"VaultCore/internal/observability"
)

// Server wraps the gRPC health surface and the HTTP admin/metrics surface.
// Vault reads (debt, headroom) are served over HTTP/JSON; mutations only
// ever enter through the NATS command subjects, so there is no write API
// here.
type Server struct {
	grpcServer    *grpc.Server
	healthServer  *health.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	engine        *engine.Engine
	healthChecker *observability.HealthChecker
}

// Deps holds the dependencies the HTTP handlers need.
type Deps struct {
	Engine        *engine.Engine
	HealthChecker *observability.HealthChecker
	StartTime     time.Time
}

func New(grpcAddr, httpAddr string, deps *Deps) *Server {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &Server{
		grpcServer:    grpcServer,
		healthServer:  healthServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		engine:        deps.Engine,
		healthChecker: deps.HealthChecker,
	}
}

// SetServing flips the gRPC health status once startup completes.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP admin server (blocking): health probes,
// Prometheus metrics, and vault read endpoints.
func (s *Server) StartHTTP(ctx context.Context) error {
	mux := http.NewServeMux()

	if s.healthChecker != nil {
		mux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	mux.Handle("/metrics", promhttp.Handler())

	if s.engine != nil {
		mux.HandleFunc("/v1/vault/status", s.handleStatus)
		mux.HandleFunc("/v1/vault/debt", s.handleDebt)
		mux.HandleFunc("/v1/vault/slot", s.handleSlot)
	}

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type statusResponse struct {
	Ilk          string `json:"ilk"`
	Initialized  bool   `json:"initialized"`
	NextSequence int64  `json:"next_sequence"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Ilk:          s.engine.Ilk(),
		Initialized:  s.engine.Initialized(),
		NextSequence: s.engine.Sequence(),
	})
}

type debtResponse struct {
	Ilk     string `json:"ilk"`
	DebtRad string `json:"debt_rad"`
}

func (s *Server) handleDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := s.engine.Debt(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, debtResponse{Ilk: s.engine.Ilk(), DebtRad: debt.String()})
}

type slotResponse struct {
	Ilk     string `json:"ilk"`
	SlotWad string `json:"slot_wad"`
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := s.engine.Slot(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{Ilk: s.engine.Ilk(), SlotWad: slot.String()})
}

func writeEngineError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, engine.ErrNotInitialized) {
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

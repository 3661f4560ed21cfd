package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/FreightWatch/config"
	"github.com/BearBump/FreightWatch/internal/services/monitor"
	"github.com/BearBump/FreightWatch/internal/services/reconcile"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	engine *monitor.Engine
	sync   *reconcile.Service
	cfg    *config.Config
}

type syncRequest struct {
	ManifestIDs []string `json:"manifestIds"`
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		opts.swaggerPath = os.Getenv("swaggerPath")
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := newWorkerRouter(opts)

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("worker HTTP listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}

func newWorkerRouter(opts workerHTTPOpts) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.engine == nil {
			_, _ = w.Write([]byte(`{"error":"engine not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.engine.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Секреты наружу не отдаём, только операционные настройки.
		fw := opts.cfg.FreightWatch
		out := map[string]any{
			"pollIntervalSeconds":            fw.WorkerPollIntervalSeconds,
			"tripLimit":                      fw.WorkerTripLimit,
			"concurrency":                    fw.WorkerConcurrency,
			"rateLimitPerMinute":             fw.WorkerRateLimitPerMinute,
			"geofenceToleranceMeters":        fw.GeofenceToleranceMeters,
			"noTrackWarnAttempts":            fw.NoTrackWarnAttempts,
			"noTrackNoveltyAttempts":         fw.NoTrackNoveltyAttempts,
			"appointmentBreachMinGapMinutes": fw.AppointmentBreachMinGapMinutes,
			"bridgeMode":                     fw.BridgeMode,
			"telemetryMode":                  fw.TelemetryMode,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.engine == nil {
			_, _ = w.Write([]byte(`{"error":"engine not wired"}`))
			return
		}
		opts.engine.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.sync == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"sync not wired"}`))
			return
		}
		var req syncRequest
		if r.Body != nil {
			// Пустое тело допустимо: синхронизируем всё ожидающее.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		res, err := opts.sync.SyncBatch(r.Context(), req.ManifestIDs)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	})

	// Swagger отдаём только если файл задан; no-cache + cachebuster.
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerPath := opts.swaggerPath
			r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "no-store")
				http.ServeFile(w, r, swaggerPath)
			})
			swaggerURL := "/swagger.json"
			if fi, err := os.Stat(swaggerPath); err == nil {
				swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
			}
			r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
		} else {
			slog.Warn("swagger file not found, docs disabled", "path", opts.swaggerPath)
		}
	}

	return r
}

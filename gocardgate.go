package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"gocardgate/endpoint"
	"gocardgate/indicator"
	"gocardgate/link"
	"gocardgate/metrics"
	"gocardgate/mqtt"
	"gocardgate/reader"
	"gocardgate/report"
	"gocardgate/session"
)

var myBuild string

func main() {
	fmt.Printf("gocardgate build %s\n", myBuild)

	cfgfile := flag.String("cfg", "gocardgate.yaml", "Config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgfile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// Initialize indicator (LEDs, buzzer, neopixels, framebuffer)
	ind, err := indicator.New(cfg.Indicator)
	if err != nil {
		log.Fatalf("Init indicator: %v", err)
	}

	conn, err := link.New(cfg.Link)
	if err != nil {
		log.Fatalf("Init link: %v", err)
	}

	client, err := session.New(cfg.Server, nil)
	if err != nil {
		log.Fatalf("Init session: %v", err)
	}
	log.Printf("Authorization server %s", client.Addr())

	rdr, err := reader.New(cfg.Reader)
	if err != nil {
		log.Fatalf("Init reader: %v", err)
	}

	bus, err := mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{})
	if err != nil {
		log.Fatalf("Init MQTT: %v", err)
	}

	reporters := report.Multi{report.NewLog(nil)}
	if bus.IsEnabled() {
		reporters = append(reporters, report.NewMQTT(bus))
	}

	reg := metrics.NewRegistry()
	ep, err := endpoint.New(cfg.Loop, endpoint.Deps{
		Reader:    rdr,
		Link:      link.NewGuardian(conn, cfg.Link),
		Auth:      client,
		Indicator: ind,
		Shower:    indicator.NewController(ind, cfg.Indicator.Timing),
		Reporter:  reporters,
		Metrics:   metrics.NewEndpoint(reg),
	})
	if err != nil {
		log.Fatalf("Init endpoint: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := bus.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ep.Run(gctx)
	})
	g.Go(func() error {
		bus.RunPing(gctx, time.Duration(cfg.PingSecs)*time.Second)
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, reg)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Stopped: %v", err)
	}

	fmt.Println("Shutting down...")
	bus.Disconnect()
	if err := rdr.Close(); err != nil {
		log.Printf("Close reader: %v", err)
	}
	ind.Shutdown()
	if err := ind.Release(); err != nil {
		log.Printf("Release indicator: %v", err)
	}
	fmt.Println("Shutdown complete")
}

func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler(reg))
	return r
}

// serveMetrics runs the metrics listener until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Command gocardgate-authd answers card endpoints with AUTHORIZED or DENIED,
// keeps the card database and access log, and pulses the door strike.
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

	"golang.org/x/sync/errgroup"

	"gocardgate/adminapi"
	"gocardgate/authserver"
	"gocardgate/cardstore"
	"gocardgate/door"
	"gocardgate/metrics"
)

var myBuild string

func main() {
	fmt.Printf("gocardgate-authd build %s\n", myBuild)

	cfgfile := flag.String("cfg", "gocardgate-authd.yaml", "Config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgfile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cardstore.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Open card store: %v", err)
	}
	defer store.Close()

	strike, err := door.New(cfg.Door)
	if err != nil {
		log.Fatalf("Init door: %v", err)
	}
	pulser := door.NewPulser(strike)

	reg := metrics.NewRegistry()
	srv := authserver.New(cfg.Server, store, pulser,
		time.Duration(cfg.Door.UnlockMs)*time.Millisecond, metrics.NewAuthd(reg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if cfg.AdminAddr != "" {
		g.Go(func() error {
			return serveAdmin(gctx, cfg.AdminAddr, adminapi.New(store, metrics.Handler(reg)).Router())
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("Stopped: %v", err)
	}

	fmt.Println("Shutting down...")
	pulser.Wait()
	if err := strike.Release(); err != nil {
		log.Printf("Release door: %v", err)
	}
	fmt.Println("Shutdown complete")
}

func serveAdmin(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Admin API on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

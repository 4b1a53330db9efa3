// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/steltix/newsgrab/internal/config"
	"github.com/steltix/newsgrab/pkg/api"
)

func main() {
	configPath := flag.String("config", "", "pipeline configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "newsgrab-server: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "newsgrab-server: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	log := client.Logger()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      newRouter(client),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.Server.Address).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("server failed: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}
}

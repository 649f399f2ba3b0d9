package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/Mtman1987/streamweaver-v2-sub001/internal/adapters/http"
	sigctl "github.com/Mtman1987/streamweaver-v2-sub001/internal/adapters/signal"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/config"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/mesh"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/presence"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/registry"
	"github.com/Mtman1987/streamweaver-v2-sub001/pkg/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	m := metrics.NewMetrics()
	promReg := prometheus.NewRegistry()
	if err := m.Register(promReg); err != nil {
		log.Error().Err(err).Msg("failed to register metrics")
	}

	reg := registry.New()
	pres := presence.NewBroadcaster(reg)
	writer := mesh.NewWriter(cfg.MeshStatePath, m)
	ctl := sigctl.NewController(cfg, reg, pres, writer, m)

	r := router.SetupRouter(ctx, cfg, ctl, promReg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("voice relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

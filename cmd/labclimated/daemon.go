package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/config"
	"github.com/hglynn/labclimate/internal/logger"
	"github.com/hglynn/labclimate/internal/loop"
	"github.com/hglynn/labclimate/internal/metrics"
	"github.com/hglynn/labclimate/internal/mqtt"
	"github.com/hglynn/labclimate/internal/relay"
	"github.com/hglynn/labclimate/internal/state"
	"github.com/hglynn/labclimate/internal/web"
)

// generation bundles a catalog with the memory built for it, so every
// consumer sees a matching pair across reloads.
type generation struct {
	cat *catalog.Catalog
	mem *state.Memory
}

func run(ctx context.Context, cfg *config.Config) error {
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}
	log := logger.L()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var current atomic.Pointer[generation]
	current.Store(&generation{cat: cat, mem: state.New(cat)})
	source := func() (*catalog.Catalog, *state.Memory) {
		g := current.Load()
		return g.cat, g.mem
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ingestor := mqtt.NewIngestor(source, m)
	client, err := mqtt.NewClient(cfg.Broker, cfg.ClientIDPrefix, cfg.CommandBuffer, ingestor, m)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	board := openRelayBoard(cat)
	if board != nil {
		defer board.Close()
	}

	startup := mqtt.SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}
	if err := client.PublishSystem(startup); err != nil {
		log.Warnf("publish startup event: %v", err)
	}

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	controller := loop.New(loop.Options{
		Source:            source,
		Dispatcher:        client,
		Relay:             board,
		System:            client,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Metrics:           m,
		StalenessTimeout:  cfg.StalenessTimeout,
		StalePolicy:       cfg.StalePolicy,
		FeedbackGrace:     cfg.FeedbackGrace,
	})

	log.Infof("started: tick=%v staleness=%v policy=%s broker=%s labs=%d",
		cfg.TickInterval, cfg.StalenessTimeout, cfg.StalePolicy, cfg.Broker, len(cat.Labs))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(ctx, ticker.C)
	})

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, source, client, cfg.StalenessTimeout, registry)
		g.Go(func() error {
			log.Infof("http listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return watchReload(ctx, cfg, &current)
	})

	err = g.Wait()

	shutdown := mqtt.SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "signal", Retained: true}
	if pubErr := client.PublishSystem(shutdown); pubErr != nil {
		log.Warnf("publish shutdown event: %v", pubErr)
	} else {
		log.Info("published shutdown event")
	}

	return err
}

// openRelayBoard opens the GPIO chip only when the catalog actually wires an
// actuator to it. Failure is reported, not fatal: MQTT actuators keep
// working, gpio ones are skipped per tick.
func openRelayBoard(cat *catalog.Catalog) relay.Board {
	needed := false
	for _, lab := range cat.Labs {
		for _, a := range lab.Actuators {
			if a.Driver == catalog.DriverGPIO {
				needed = true
			}
		}
	}
	if !needed {
		return nil
	}

	board, err := relay.NewRealBoard(relay.DefaultChip)
	if err != nil {
		logger.L().Errorf("relay board unavailable, gpio actuators disabled: %v", err)
		return nil
	}
	return board
}

// watchReload reloads the catalog on SIGHUP. Live readings and actuator
// states survive the swap; a broken catalog file keeps the old generation.
func watchReload(ctx context.Context, cfg *config.Config, current *atomic.Pointer[generation]) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			newCat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				logger.L().Errorf("reload: catalog rejected, keeping current: %v", err)
				continue
			}
			old := current.Load()
			newMem := state.New(newCat)
			newMem.Restore(old.mem.Snapshot())
			current.Store(&generation{cat: newCat, mem: newMem})
			logger.L().Infof("reload: catalog swapped, labs=%d", len(newCat.Labs))
		}
	}
}

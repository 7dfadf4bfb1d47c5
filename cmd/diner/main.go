package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/config"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/gateway"
	"github.com/Braavos-Developer/diner-design/internal/repository"
	"github.com/Braavos-Developer/diner-design/internal/store"
	"github.com/Braavos-Developer/diner-design/internal/view"
)

func main() {
	mode := flag.String("mode", "", "gateway | kitchen-display | floor-console | client-menu")
	port := flag.String("port", "", "gateway: http port (overrides SERVER_PORT)")
	station := flag.String("station", "kitchen", "kitchen-display: kitchen | bar | dessert")
	table := flag.Int("table", 0, "client-menu: table number")
	flag.Parse()

	if *mode == "" {
		fmt.Fprintln(os.Stderr, "--mode is required: gateway | kitchen-display | floor-console | client-menu")
		os.Exit(2)
	}

	cfg := config.Load()
	lg := logger.New(*mode)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Error("store_connect_failed", err, map[string]any{"backend": cfg.StoreBackend})
		os.Exit(1)
	}
	defer st.Close()

	b := bus.New()
	if err := bus.Bridge(ctx, st, b, lg); err != nil {
		lg.Error("bridge_failed", err, nil)
		os.Exit(1)
	}

	var relay *bus.Relay
	var broadcaster repository.Broadcaster
	if cfg.RabbitURL != "" {
		relay, err = bus.DialRelay(cfg.RabbitURL, lg)
		if err != nil {
			lg.Error("relay_connect_failed", err, nil)
			os.Exit(1)
		}
		defer relay.Close()
		if err := relay.Listen(ctx, b); err != nil {
			lg.Error("relay_listen_failed", err, nil)
			os.Exit(1)
		}
		broadcaster = relay
	}

	tables := repository.NewTables(st, b, broadcaster, lg)
	calls := repository.NewCalls(st, b, broadcaster, lg)
	orders := repository.NewOrders(st, b, broadcaster, calls, tables, cfg.ServiceChargeRate, lg)

	lg.Info("service_started", map[string]any{"mode": *mode, "store": cfg.StoreBackend})

	switch *mode {
	case "gateway":
		if err := tables.Seed(ctx); err != nil {
			lg.Error("seed_failed", err, nil)
			os.Exit(1)
		}
		httpPort := cfg.ServerPort
		if *port != "" {
			httpPort = *port
		}
		gw := gateway.New(orders, calls, tables, b, lg)
		if err := gw.Run(ctx, httpPort); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "kitchen-display":
		s := domain.Station(*station)
		if !s.Valid() {
			fmt.Fprintln(os.Stderr, "--station must be kitchen | bar | dessert")
			os.Exit(2)
		}
		if err := view.NewKitchen(orders, b, s, lg).Run(ctx); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "floor-console":
		if err := view.NewFloor(calls, tables, b, lg).Run(ctx); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "client-menu":
		if *table <= 0 {
			fmt.Fprintln(os.Stderr, "--table is required for client-menu")
			os.Exit(2)
		}
		if err := view.NewClient(orders, b, *table, lg).Run(ctx); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown mode:", *mode)
		os.Exit(2)
	}
}

func openStore(ctx context.Context, cfg *config.Config, lg *logger.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory().Open(), nil
	case "redis":
		return store.OpenRedis(ctx, cfg.RedisURL, lg)
	case "postgres":
		return store.OpenPostgres(ctx, cfg.DatabaseURL, lg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

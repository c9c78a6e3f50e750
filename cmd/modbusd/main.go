// Command modbusd runs a standalone Modbus TCP server backed by an
// in-memory or Redis datastore, configured via file and environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lattice-iot/modbusd/common"
	"github.com/lattice-iot/modbusd/config"
	"github.com/lattice-iot/modbusd/datastore"
	"github.com/lattice-iot/modbusd/logging"
	"github.com/lattice-iot/modbusd/server"
)

func main() {
	configPath := flag.String("config", "", "Path to server config file (YAML/JSON); optional")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modbusd: %v\n", err)
		os.Exit(1)
	}

	if cfg.Port == 0 {
		port, err := common.FindFreePortTCP()
		if err != nil {
			fmt.Fprintf(os.Stderr, "modbusd: %v\n", err)
			os.Exit(1)
		}
		cfg.Port = port
	}

	logger := logging.NewLogger(
		logging.WithLevel(logging.ParseLevel(cfg.LogLevel)),
		logging.WithDevelopment(true),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := buildDatastore(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to build datastore: %v", err)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}

	srv := server.NewTCPServer(cfg.Host,
		server.WithServerPort(cfg.Port),
		server.WithServerLogger(logger),
		server.WithServerDataStore(store),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info(ctx, "received shutdown signal, stopping server")
		if err := srv.Stop(ctx); err != nil {
			logger.Error(ctx, "error stopping server: %v", err)
		}
		cancel()
	}()

	logger.Info(ctx, "starting modbus tcp server on %s:%d (datastore=%s)", cfg.Host, cfg.Port, cfg.Datastore)
	if err := srv.Start(ctx); err != nil {
		logger.Error(ctx, "failed to start server: %v", err)
		os.Exit(1)
	}

	go logPeriodicStats(ctx, srv, logger)

	<-ctx.Done()
	logger.Info(ctx, "server shutdown complete")
}

func buildDatastore(ctx context.Context, cfg *config.ServerConfig, logger common.LoggerInterface) (datastore.DataStore, func(), error) {
	switch cfg.Datastore {
	case config.DatastoreRedis:
		if cfg.AddressMapFile == "" {
			return nil, nil, fmt.Errorf("redis datastore requires address_map_file to be set")
		}
		addrMap, warnings, err := config.LoadAddressMap(cfg.AddressMapFile)
		if err != nil {
			return nil, nil, err
		}
		for _, w := range warnings {
			logger.Warn(ctx, "%s", w)
		}

		store, err := datastore.NewRedisStore(datastore.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, addrMap)
		if err != nil {
			return nil, nil, err
		}
		if err := store.ApplyInitialValues(ctx); err != nil {
			logger.Warn(ctx, "failed to apply initial values: %v", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return datastore.NewMemoryStore(), nil, nil
	}
}

func logPeriodicStats(ctx context.Context, srv *server.TCPServer, logger common.LoggerInterface) {
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			clients := srv.ConnectedClients()
			logger.Info(ctx, "%d client(s) connected", len(clients))
			for _, c := range clients {
				logger.Debug(ctx, "%s", c.String())
			}
		}
	}
}

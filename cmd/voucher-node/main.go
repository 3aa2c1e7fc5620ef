package main

import (
	"flag"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"voucher-node/api"
	"voucher-node/internal/config"
	"voucher-node/internal/logger"
	"voucher-node/internal/service"
	"voucher-node/internal/sign"
	"voucher-node/internal/storage"
	"voucher-node/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.InitLogger(cfg.Logger); err != nil {
		logger.Log.Fatalf("Failed to initialize logger: %v", err)
	}

	issuerKey, err := issuerKeyFrom(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to load issuer key: %v", err)
	}

	var endpoints []transport.Endpoint
	for _, r := range cfg.Relays {
		switch r.Kind {
		case "tcp":
			endpoints = append(endpoints, transport.NewTCPEndpoint(r.Name, r.Address))
		case "memory":
			endpoints = append(endpoints, transport.NewMemoryEndpoint(r.Name))
		default:
			logger.Log.Fatalf("Unknown relay kind %q for relay %s", r.Kind, r.Name)
		}
	}
	if cfg.Database.Enabled {
		storage.InitDB(cfg.Database)
		endpoints = append(endpoints, storage.NewEndpoint("local-db", storage.DB))
	}
	if len(endpoints) == 0 {
		logger.Log.Fatal("No relays configured and database disabled; nowhere to publish")
	}

	pool := transport.NewPool(time.Duration(cfg.PublishTimeoutMS)*time.Millisecond, endpoints...)
	pool.SetQueryTimeout(time.Duration(cfg.QueryTimeoutMS) * time.Millisecond)
	svc := service.New(cfg.IssuerID, issuerKey, pool)

	router := api.SetupRouter(svc)
	if err := router.Run(cfg.ServerPort); err != nil {
		logger.Log.Fatalf("HTTP server stopped: %v", err)
	}
}

// issuerKeyFrom loads the configured issuer key, or generates a fresh one for
// throwaway local runs.
func issuerKeyFrom(cfg *config.Config) (*btcec.PrivateKey, error) {
	if cfg.IssuerPrivateKey != "" {
		return sign.ParsePrivateKeyHex(cfg.IssuerPrivateKey)
	}
	key, err := sign.GenerateKey()
	if err != nil {
		return nil, err
	}
	logger.Log.Warn("No issuer key configured; generated an ephemeral one. Vouchers will not be re-verifiable after restart.")
	return key, nil
}

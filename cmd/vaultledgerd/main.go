// Command vaultledgerd is the service entrypoint: it loads config, wires
// the core components (AppendLog registry, ContentStore, Vault, Anchor
// Service) together, and serves the HTTP adapter.
// There is no equivalent binary in the teacher repo (forestrie-go-merklelog
// ships as a library); this follows the production-service boot sequence
// visible across the wider pack (config load, automaxprocs.Set, structured
// logger, graceful listen) rather than any single teacher file.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/anchor"
	"github.com/datatrails/vaultledger/appendlog"
	"github.com/datatrails/vaultledger/config"
	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/vaulthttp"
	"github.com/datatrails/vaultledger/vaultkey"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vaultledgerd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a vaultledger.yaml config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Infof)); err != nil {
		log.Warn("automaxprocs: leaving GOMAXPROCS unchanged", zap.Error(err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	vault, err := loadVault(cfg, log)
	if err != nil {
		return fmt.Errorf("loading vault key: %w", err)
	}
	defer vault.Teardown()

	registry, err := appendlog.NewRegistry(filepath.Join(cfg.StorageRoot, "streams"), cfg.AnchorStreamDurable, log)
	if err != nil {
		return fmt.Errorf("opening stream registry: %w", err)
	}
	defer registry.CloseAll() //nolint:errcheck

	store, err := content.NewLocalStore(filepath.Join(cfg.StorageRoot, "blobs"), log)
	if err != nil {
		return fmt.Errorf("opening content store: %w", err)
	}

	svc := anchor.NewService(vault, registry, store, log)
	if err := svc.Init(); err != nil {
		return fmt.Errorf("initializing anchor service: %w", err)
	}

	handler := vaulthttp.NewHandler(svc, log)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("vaultledgerd listening", zap.String("addr", cfg.HTTPAddr), zap.String("anchor_stream", svc.StreamID()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// loadVault resolves the signing key per cfg.AnchorKeySource: env reads a
// base64 seed+public-key pair from VAULTLEDGER_SIGNING_KEY (spec §6's
// anchor.key_source=env); generate mints a fresh process-local key,
// suitable only for development since it is lost on restart.
func loadVault(cfg config.Config, log *zap.Logger) (*vaultkey.Vault, error) {
	var priv ed25519.PrivateKey

	switch cfg.AnchorKeySource {
	case config.KeySourceEnv:
		encoded, ok := config.SigningKeyFromEnv()
		if !ok {
			return nil, errors.New("anchor_key_source is \"env\" but VAULTLEDGER_SIGNING_KEY is unset")
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding VAULTLEDGER_SIGNING_KEY: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("VAULTLEDGER_SIGNING_KEY decoded to %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
		}
		priv = ed25519.PrivateKey(raw)
	case config.KeySourceGenerate:
		_, generated, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, err
		}
		priv = generated
		log.Warn("anchor_key_source=generate: signing key is process-local and will not survive a restart")
	default:
		return nil, fmt.Errorf("unsupported anchor_key_source %q", cfg.AnchorKeySource)
	}

	vault := vaultkey.New(log)
	if err := vault.Init(priv); err != nil {
		return nil, err
	}
	return vault, nil
}

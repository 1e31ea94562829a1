// Command neutrond runs the chat/file-transfer server: it loads the
// configuration, brings up the repository, blob store and presence
// registry, and serves connections until an interrupt signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/neutron/internal/blobstore"
	"github.com/gosuda/neutron/internal/config"
	"github.com/gosuda/neutron/internal/cryptocore"
	"github.com/gosuda/neutron/internal/engine"
	"github.com/gosuda/neutron/internal/presence"
	"github.com/gosuda/neutron/internal/repository"
	"github.com/gosuda/neutron/internal/worker"
)

var rootCmd = &cobra.Command{
	Use:   "neutrond",
	Short: "Post-quantum encrypted chat and file-transfer server",
	RunE:  runServer,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "neutron.yaml", "path to the server's YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("neutrond")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log_level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identity, err := cryptocore.LoadOrCreateIdentity(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	pubBytes, err := identity.PublicKeyBytes()
	if err != nil {
		return fmt.Errorf("marshal server public key: %w", err)
	}
	log.Info().Str("server_id", cryptocore.ServerID(pubBytes)).Msg("identity loaded")

	repo, err := repository.Open(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	blobs, err := blobstore.New(cfg.UserShare)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	srv := engine.New(ctx, engine.Config{
		Identity:   identity,
		ServerName: cfg.Name,
		Motd:       cfg.Motd,
		Registry:   presence.New(),
		Repo:       repo,
		Blobs:      blobs,
		Pool:       worker.New(runtime.NumCPU()),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info().Msg("shutdown signal received")
		cancel()
		return <-serveErr
	case err := <-serveErr:
		return err
	}
}

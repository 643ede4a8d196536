// Command chordnode runs a single Chord ring node: it serves the client
// and internal HTTP endpoints (internal/httpapi) and drives the
// stabilize/fix-fingers/check-predecessor maintenance loop
// (internal/chord) until it receives a shutdown signal.
//
// Grounded on the teacher's src/cmd/server/main.go shutdown shape
// (context.WithTimeout-bounded graceful stop on SIGINT/SIGTERM), with flag
// parsing replaced by cobra per SPEC_FULL.md's CLI component (C13).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chordkv/internal/chord"
	"chordkv/internal/config"
	"chordkv/internal/httpapi"
	"chordkv/internal/logging"
	"chordkv/internal/ring"
	"chordkv/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		mFlag      int
		hopLimit   int
		periodMS   int
	)

	cmd := &cobra.Command{
		Use:   "chordnode <host> <port>",
		Short: "Run a single Chord ring node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1], configPath, mFlag, hopLimit, periodMS)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.Flags().IntVar(&mFlag, "m", 0, "identifier width in bits (overrides config)")
	cmd.Flags().IntVar(&hopLimit, "hop-limit", 0, "max forwarding hops (overrides config)")
	cmd.Flags().IntVar(&periodMS, "period", 0, "maintenance loop period in milliseconds (overrides config)")

	return cmd
}

func run(host, portStr, configPath string, mFlag, hopLimitFlag, periodMSFlag int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if mFlag != 0 {
		cfg.M = mFlag
	}
	if hopLimitFlag != 0 {
		cfg.HopLimit = hopLimitFlag
	}
	if periodMSFlag != 0 {
		cfg.PeriodMS = periodMSFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("chordnode: building logger: %w", err)
	}
	defer log.Sync()

	addr, err := ring.ParsePeerAddr(host + ":" + portStr)
	if err != nil {
		return fmt.Errorf("chordnode: %w", err)
	}
	me := ring.NewNode(addr, cfg.M)

	client := chord.NewClient(log)
	state := chord.New(me, cfg.M, client, log)
	kv := store.New()

	srv := httpapi.New(addr.Label(), state, kv, cfg.M, cfg.HopLimit, log)

	log.Info("starting chord node",
		zap.String("addr", addr.Label()),
		zap.Uint64("id", uint64(me.ID)),
		zap.Int("m", cfg.M),
		zap.Int("hop_limit", cfg.HopLimit),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	state.RunMaintenance(ctx, time.Duration(cfg.PeriodMS)*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("chordnode: shutdown: %w", err)
	}
	return nil
}

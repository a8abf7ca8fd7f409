// Command sweep runs one escalation sweep and prints the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-escalation/internal/bootstrap"
	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
	var (
		noLock    bool
		limit     int
		logLevel  string
		rate      float64
		matrixDoc string
	)
	flagSet.BoolVar(&noLock, "no-lock", false, "skip the distributed sweep lock")
	flagSet.IntVar(&limit, "limit", 0, "max candidates per rule (default from ESCALATION_CANDIDATE_LIMIT)")
	flagSet.Float64Var(&rate, "rate", -1, "candidates per second, 0 for unpaced (default from ESCALATION_RATE_PER_SECOND)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level override")
	flagSet.StringVar(&matrixDoc, "capabilities", "", "capability matrix YAML (default from POLICY_CAPABILITIES_FILE)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if limit > 0 {
		cfg.Escalation.CandidateLimit = limit
	}
	if rate >= 0 {
		cfg.Escalation.RatePerSecond = rate
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	if matrixDoc != "" {
		cfg.Policy.CapabilitiesFile = matrixDoc
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	var locker worker.Locker
	if !noLock {
		locker = container.Redis
	}
	sweeper, err := worker.NewEscalationWorker(cfg.Escalation, container.Escalation, locker, logger)
	if err != nil {
		return err
	}
	report, err := sweeper.RunOnce(ctx)
	if err != nil {
		logger.Error("sweep failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

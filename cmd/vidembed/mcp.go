package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixml/vidembed/application/service"
	domainstore "github.com/helixml/vidembed/domain/store"
	"github.com/helixml/vidembed/internal/config"
	"github.com/helixml/vidembed/internal/log"
	"github.com/helixml/vidembed/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var (
		envFile   string
		ledgerURL string
		ef        encoderFlags
		sf        storeFlags
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve clip search and the run ledger over MCP on stdio",
		Long: `Serve clip search and the run ledger to MCP clients on stdio.

Tools:
  search_clips    Find clips matching a text description
  list_runs       List recent embedding runs (needs LEDGER_URL)
  get_run_clips   List the clips of one run (needs LEDGER_URL)

Logs are written to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNames(ef.name, sf.name); err != nil {
				return err
			}
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			cfg = cfg.Apply(config.WithRewrite(false))
			if ledgerURL != "" {
				cfg = cfg.Apply(config.WithLedgerURL(ledgerURL))
			}
			logger := log.Configure(cfg).Slog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := buildSearch(ctx, cfg, ef, sf, logger)
			if err != nil {
				return err
			}
			defer deps.closeText(logger)

			var runs mcp.RunLister
			if cfg.LedgerURL() != "" {
				ledger, closeLedger, err := openLedger(ctx, cfg.LedgerURL(), logger)
				if err != nil {
					return err
				}
				defer func() { _ = closeLedger() }()
				runs = ledger
			}

			return domainstore.Use(ctx, deps.handler, func(domainstore.Handler) error {
				search := service.NewSearch(deps.text, deps.searcher, logger)
				logger.Info("serving mcp on stdio", "store", sf.name, "encoder", ef.name)
				return mcp.NewServer(search, runs, version, logger).ServeStdio()
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&ledgerURL, "ledger", "", "Run ledger database URL (default: LEDGER_URL)")
	addEncoderFlags(cmd, &ef)
	addStoreFlags(cmd, &sf)

	return cmd
}

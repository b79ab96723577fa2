package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/run"
	domainstore "github.com/helixml/vidembed/domain/store"
	"github.com/helixml/vidembed/infrastructure/encoder"
	"github.com/helixml/vidembed/infrastructure/store"
	"github.com/helixml/vidembed/internal/config"
	"github.com/helixml/vidembed/internal/log"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List encoders, stores, runs and stored clips",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encoders",
		Short: "List registered encoders",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range encoder.Names() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stores",
		Short: "List registered vector stores",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range store.Names() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	})
	cmd.AddCommand(listRunsCmd())
	cmd.AddCommand(listClipsCmd())
	cmd.AddCommand(countCmd())

	return cmd
}

type ledgerFlags struct {
	envFile   string
	ledgerURL string
}

func (f *ledgerFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&f.ledgerURL, "ledger", "", "Run ledger database URL (default: LEDGER_URL)")
}

// withLedger opens the configured ledger and runs fn against it.
func (f ledgerFlags) withLedger(fn func(context.Context, run.Ledger) error) error {
	cfg, err := loadConfig(f.envFile)
	if err != nil {
		return err
	}
	if f.ledgerURL != "" {
		cfg = cfg.Apply(config.WithLedgerURL(f.ledgerURL))
	}
	if cfg.LedgerURL() == "" {
		return embedding.Configurationf("no ledger configured: set LEDGER_URL or --ledger")
	}
	logger := log.Configure(cfg).Slog()

	ctx := context.Background()
	ledger, closeLedger, err := openLedger(ctx, cfg.LedgerURL(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLedger(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()
	return fn(ctx, ledger)
}

func listRunsCmd() *cobra.Command {
	var (
		f     ledgerFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withLedger(func(ctx context.Context, l run.Ledger) error {
				runs, err := l.Runs(ctx, limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tENCODER\tSTORE\tSTORED\tSKIPPED\tFAILED\tCORPUS")
				for _, r := range runs {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						r.ID, r.StartedAt.Format(time.DateTime), r.Mode, r.Encoder, r.Store,
						r.Clips, r.Skipped, r.Failed, r.Corpus)
				}
				return tw.Flush()
			})
		},
	}
	f.add(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}

func listClipsCmd() *cobra.Command {
	var f ledgerFlags
	cmd := &cobra.Command{
		Use:   "clips RUN_ID",
		Short: "List the clips of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withLedger(func(ctx context.Context, l run.Ledger) error {
				clips, err := l.Clips(ctx, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tVIDEO\tFRAMES\tSTATUS\tENCODE\tUPLOAD\tERROR")
				for _, c := range clips {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%d-%d\t%s\t%s\t%s\t%s\n",
						c.ClipID, c.Video, c.StartFrame, c.EndFrame, c.Status,
						c.EncodeTime.Round(time.Millisecond), c.UploadTime.Round(time.Millisecond), c.Error)
				}
				return tw.Flush()
			})
		},
	}
	f.add(cmd)
	return cmd
}

func countCmd() *cobra.Command {
	var (
		envFile string
		ef      encoderFlags
		sf      storeFlags
	)
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the vectors held by a store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNames(ef.name, sf.name); err != nil {
				return err
			}
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			cfg = cfg.Apply(config.WithRewrite(false))
			logger := log.Configure(cfg).Slog()
			ctx := context.Background()

			if err := checkStore(cfg, sf); err != nil {
				return err
			}
			generator, err := buildEncoder(ctx, cfg, ef, logger)
			if err != nil {
				return fmt.Errorf("build encoder %s: %w", ef.name, err)
			}
			params := generator.Params()
			_ = generator.Close()

			handler, err := buildStore(cfg, sf, params, logger)
			if err != nil {
				return fmt.Errorf("build store %s: %w", sf.name, err)
			}
			lister, ok := handler.(domainstore.Lister)
			if !ok {
				return embedding.Configurationf("store %s cannot count its contents", sf.name)
			}
			return domainstore.Use(ctx, handler, func(domainstore.Handler) error {
				n, err := lister.Count(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	addEncoderFlags(cmd, &ef)
	addStoreFlags(cmd, &sf)
	return cmd
}


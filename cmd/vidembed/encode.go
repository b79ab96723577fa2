package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/helixml/vidembed/application/service"
	domainstore "github.com/helixml/vidembed/domain/store"
	"github.com/helixml/vidembed/infrastructure/annotation"
	"github.com/helixml/vidembed/infrastructure/encoder"
	"github.com/helixml/vidembed/infrastructure/store"
	"github.com/helixml/vidembed/infrastructure/video"
	"github.com/helixml/vidembed/internal/config"
	"github.com/helixml/vidembed/internal/log"
	"github.com/helixml/vidembed/internal/metrics"
	"github.com/helixml/vidembed/internal/progress"
)

const (
	modeAnnotated = "annotated"
	modeWindowed  = "windowed"
)

type encodeFlags struct {
	envFile     string
	corpus      string
	annotations string
	saveDir     string
	mode        string
	clipSeconds float64
	stride      int
	rewrite     bool
	noProgress  bool
	ledgerURL   string
	metricsAddr string
	encoder     encoderFlags
	store       storeFlags
}

// validate checks flags that need no I/O.
func (f encodeFlags) validate() error {
	if err := validateNames(f.encoder.name, f.store.name); err != nil {
		return err
	}
	if f.corpus == "" {
		return errors.New("--corpus is required")
	}
	switch f.mode {
	case modeAnnotated:
		if f.annotations == "" {
			return errors.New("--annotations is required in annotated mode")
		}
	case modeWindowed:
	default:
		return fmt.Errorf("unknown mode %q: expected %s or %s", f.mode, modeAnnotated, modeWindowed)
	}
	if f.stride < 0 {
		return fmt.Errorf("--stride must not be negative, got %d", f.stride)
	}
	return nil
}

func encodeCmd() *cobra.Command {
	f := encodeFlags{}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Embed every clip of a video corpus",
		Long: `Embed every clip of a video corpus and upload the vectors to a store.

In annotated mode each annotated segment of each video becomes a clip.
In windowed mode every video in the corpus directory is cut into
fixed-length windows of CLIP_SECONDS.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  DATA_DIR                     Data directory (default: ~/.vidembed)
  LEDGER_URL                   Run ledger database URL (empty disables the ledger)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  METRICS_ADDR                 Serve /metrics and /healthz on this address
  HTTP_CACHE_DIR               Cache embedding responses on disk
  CLIP_SECONDS                 Window length in windowed mode (default: 14)
  REWRITE                      Drop existing vectors before upload (default: true)

  FRAME_ENDPOINT_*             Frame embedding service configuration
    PROTOCOL                   openai or clip (default: openai)
    BASE_URL                   Base URL
    MODEL                      Model identifier
    API_KEY                    API key for authentication
    NUM_PARALLEL_TASKS         Concurrent requests (default: 1)
    BATCH_SIZE                 Frames per request (default: 8)
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  MILVUS_*                     ADDRESS, USERNAME, PASSWORD, TOKEN, DB_NAME
  QDRANT_*                     HOST, PORT, API_KEY, USE_TLS`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			return runEncode(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	flags.StringVar(&f.corpus, "corpus", "", "Root directory of the video corpus")
	flags.StringVar(&f.annotations, "annotations", "", "Directory holding the annotation files")
	flags.StringVar(&f.saveDir, "save-dir", "", "Also write every embedding as .npy into this directory")
	flags.StringVar(&f.mode, "mode", modeAnnotated, "Clip selection: annotated or windowed")
	flags.Float64Var(&f.clipSeconds, "clip-seconds", 0, "Window length in seconds (default: CLIP_SECONDS)")
	flags.IntVar(&f.stride, "stride", 1, "Keep every n-th frame in windowed mode")
	flags.BoolVar(&f.rewrite, "rewrite", config.DefaultRewrite, "Drop existing vectors before upload")
	flags.BoolVar(&f.noProgress, "no-progress", false, "Disable the progress bar")
	flags.StringVar(&f.ledgerURL, "ledger", "", "Run ledger database URL (default: LEDGER_URL)")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve metrics on this address (default: METRICS_ADDR)")
	addEncoderFlags(cmd, &f.encoder)
	addStoreFlags(cmd, &f.store)

	return cmd
}

func addEncoderFlags(cmd *cobra.Command, f *encoderFlags) {
	cmd.Flags().StringVar(&f.name, "encoder", encoder.NameDefault, "Encoder name")
	cmd.Flags().StringVar(&f.shape, "shape", "", "Embedding size of the random encoder, e.g. 768 or (768,)")
	cmd.Flags().Float32SliceVar(&f.stubVector, "stub-vector", nil, "Vector returned by the stub encoder")
	cmd.Flags().StringVar(&f.modelConfig, "model-config", "", "YAML file describing the frame model")
}

func addStoreFlags(cmd *cobra.Command, f *storeFlags) {
	cmd.Flags().StringVar(&f.name, "store", store.NameLocal, "Vector store name")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Directory of the local store (default: DATA_DIR/embeddings)")
}

func runEncode(cmd *cobra.Command, f encodeFlags) error {
	cfg, err := loadConfig(f.envFile)
	if err != nil {
		return err
	}

	var opts []config.AppConfigOption
	if cmd.Flags().Changed("rewrite") {
		opts = append(opts, config.WithRewrite(f.rewrite))
	}
	if f.clipSeconds > 0 {
		opts = append(opts, config.WithClipSeconds(f.clipSeconds))
	}
	if f.ledgerURL != "" {
		opts = append(opts, config.WithLedgerURL(f.ledgerURL))
	}
	if f.metricsAddr != "" {
		opts = append(opts, config.WithMetricsAddr(f.metricsAddr))
	}
	cfg = cfg.Apply(opts...)

	logger := log.Configure(cfg).Slog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.LogAttrs(ctx, slog.LevelDebug, "configuration", cfg.LogAttrs()...)

	if err := checkStore(cfg, f.store); err != nil {
		return err
	}

	var anns *annotation.Set
	if f.mode == modeAnnotated {
		anns, err = annotation.Load(f.annotations)
		if err != nil {
			return fmt.Errorf("load annotations: %w", err)
		}
		logger.Info("annotations loaded", "clips", anns.Len(), "videos", len(anns.Videos()))
	}

	source := video.NewFFmpeg(video.WithLogger(logger))
	if err := source.Available(); err != nil {
		return err
	}

	generator, err := buildEncoder(ctx, cfg, f.encoder, logger)
	if err != nil {
		return fmt.Errorf("build encoder %s: %w", f.encoder.name, err)
	}
	defer func() {
		if err := generator.Close(); err != nil {
			logger.Warn("failed to close encoder", "error", err)
		}
	}()

	handler, err := buildStore(cfg, f.store, generator.Params(), logger)
	if err != nil {
		return fmt.Errorf("build store %s: %w", f.store.name, err)
	}

	ledger, closeLedger, err := openLedger(ctx, cfg.LedgerURL(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLedger(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()

	m := metrics.New(f.encoder.name, f.store.name)

	pipelineOpts := []service.PipelineOption{
		service.WithSaveDir(f.saveDir),
		service.WithLedger(ledger),
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithClipSeconds(cfg.ClipSeconds()),
		service.WithWindowStride(f.stride),
		service.WithStoreName(f.store.name),
	}
	if !f.noProgress {
		pipelineOpts = append(pipelineOpts, service.WithProgress(func(total int, description string) progress.Reporter {
			return progress.NewBar(os.Stderr, total, description)
		}))
	}

	g, gctx := errgroup.WithContext(ctx)
	var server *metrics.Server
	if cfg.MetricsAddr() != "" {
		server = metrics.NewServer(cfg.MetricsAddr(), m, logger)
		g.Go(server.Start)
	}

	g.Go(func() error {
		if server != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Warn("failed to stop metrics server", "error", err)
				}
			}()
		}

		return domainstore.Use(gctx, handler, func(h domainstore.Handler) error {
			pipeline := service.NewPipeline(source, generator, h, pipelineOpts...)

			var (
				summary service.Summary
				runErr  error
			)
			if anns != nil {
				summary, runErr = pipeline.RunAnnotated(gctx, f.corpus, anns)
			} else {
				summary, runErr = pipeline.RunWindowed(gctx, f.corpus)
			}
			if runErr != nil {
				return runErr
			}
			printSummary(cmd, summary)
			return nil
		})
	})

	return g.Wait()
}

func printSummary(cmd *cobra.Command, s service.Summary) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "run:      %s\n", s.RunID)
	_, _ = fmt.Fprintf(out, "stored:   %d\n", s.Clips)
	_, _ = fmt.Fprintf(out, "skipped:  %d\n", s.Skipped)
	_, _ = fmt.Fprintf(out, "failed:   %d\n", s.Failed)
	_, _ = fmt.Fprintf(out, "encode:   %s\n", s.EncodeTime.Round(time.Millisecond))
	_, _ = fmt.Fprintf(out, "upload:   %s\n", s.UploadTime.Round(time.Millisecond))
}


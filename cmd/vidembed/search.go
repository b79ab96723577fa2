package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixml/vidembed/application/service"
	"github.com/helixml/vidembed/domain/embedding"
	domainstore "github.com/helixml/vidembed/domain/store"
	"github.com/helixml/vidembed/internal/config"
	"github.com/helixml/vidembed/internal/log"
)

type searchFlags struct {
	envFile string
	topK    int
	json    bool
	encoder encoderFlags
	store   storeFlags
}

func searchCmd() *cobra.Command {
	f := searchFlags{}

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Find the clips closest to a text query",
		Long: `Find the clips closest to a text query.

The query is embedded by the text endpoint (TEXT_ENDPOINT_*) or, when none
is configured, by the local model in HUGOT_MODEL_DIR. The encoder flags
select the collection the clips were uploaded to.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNames(f.encoder.name, f.store.name); err != nil {
				return err
			}
			return runSearch(cmd, f, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&f.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", service.DefaultSearchLimit, "Number of results")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print results as JSON lines")
	addEncoderFlags(cmd, &f.encoder)
	addStoreFlags(cmd, &f.store)

	return cmd
}

func runSearch(cmd *cobra.Command, f searchFlags, query string) error {
	cfg, err := loadConfig(f.envFile)
	if err != nil {
		return err
	}
	// Opening a store with rewrite enabled would drop what we want to search.
	cfg = cfg.Apply(config.WithRewrite(false))
	logger := log.Configure(cfg).Slog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildSearch(ctx, cfg, f.encoder, f.store, logger)
	if err != nil {
		return err
	}
	defer deps.closeText(logger)

	return domainstore.Use(ctx, deps.handler, func(domainstore.Handler) error {
		results, err := service.NewSearch(deps.text, deps.searcher, logger).Query(ctx, query, f.topK)
		if err != nil {
			return err
		}
		if f.json {
			return writeResultsJSON(cmd.OutOrStdout(), results)
		}
		return writeResults(cmd.OutOrStdout(), results)
	})
}

// searchDeps are the parts a text search needs. The handler is not yet open.
type searchDeps struct {
	text     textEncoder
	handler  domainstore.Handler
	searcher domainstore.Searcher
}

func (d searchDeps) closeText(logger *slog.Logger) {
	if err := d.text.Close(); err != nil {
		logger.Warn("failed to close text encoder", "error", err)
	}
}

// buildSearch resolves the collection from the encoder's params and pairs
// its store with a text encoder. cfg must have rewrite disabled.
func buildSearch(ctx context.Context, cfg config.AppConfig, ef encoderFlags, sf storeFlags, logger *slog.Logger) (searchDeps, error) {
	if err := checkStore(cfg, sf); err != nil {
		return searchDeps{}, err
	}
	generator, err := buildEncoder(ctx, cfg, ef, logger)
	if err != nil {
		return searchDeps{}, fmt.Errorf("build encoder %s: %w", ef.name, err)
	}
	params := generator.Params()
	if err := generator.Close(); err != nil {
		logger.Warn("failed to close encoder", "error", err)
	}

	handler, err := buildStore(cfg, sf, params, logger)
	if err != nil {
		return searchDeps{}, fmt.Errorf("build store %s: %w", sf.name, err)
	}
	searcher, ok := handler.(domainstore.Searcher)
	if !ok {
		return searchDeps{}, embedding.Configurationf("store %s does not support search", sf.name)
	}

	text, err := buildTextEncoder(cfg, logger)
	if err != nil {
		return searchDeps{}, err
	}
	return searchDeps{text: text, handler: handler, searcher: searcher}, nil
}
func writeResults(w io.Writer, results []domainstore.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSCORE\tVIDEO\tFRAMES")
	for _, r := range results {
		md := r.Metadata()
		_, _ = fmt.Fprintf(tw, "%d\t%.4f\t%s\t%v-%v\n", r.ID(), r.Score(), r.Video(), md[embedding.KeyStartFrame], md[embedding.KeyEndFrame])
	}
	return tw.Flush()
}

type resultJSON struct {
	ID       int64          `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

func writeResultsJSON(w io.Writer, results []domainstore.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(resultJSON{ID: r.ID(), Score: r.Score(), Metadata: r.Metadata()}); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	return nil
}

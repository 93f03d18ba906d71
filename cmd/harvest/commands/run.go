package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/output"
	"github.com/use-agent/harvest/scraper"
	"github.com/use-agent/harvest/sources"
)

type runFlags struct {
	all    bool
	pages  int
	out    string
	format string
}

func newRunCmd(load func() *config.Config, factory Factory) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "Extract records from one or more sources",
		Long: `Extract a record from each named source and write it to the output
directory. With more than one source a combined document is written as well.
Use --out - to print to stdout instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if !cmd.Flags().Changed("pages") {
				flags.pages = cfg.Pagination.DefaultPages
			}
			if !cmd.Flags().Changed("out") {
				flags.out = cfg.Output.Dir
			}
			if !cmd.Flags().Changed("format") {
				flags.format = cfg.Output.Format
			}
			return runSources(cmd, cfg, factory, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "run every registered source")
	cmd.Flags().IntVarP(&flags.pages, "pages", "p", 1, "listing pages to walk")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "output", "output directory, or - for stdout")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func runSources(cmd *cobra.Command, cfg *config.Config, factory Factory, flags *runFlags, ids []string) error {
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	if flags.pages < 1 {
		flags.pages = 1
	}
	if limit := cfg.Pagination.MaxPages; limit > 0 && flags.pages > limit {
		flags.pages = limit
	}

	a, err := factory(cfg)
	if err != nil {
		return err
	}
	if flags.all {
		ids = a.Registry.IDs()
	}
	if len(ids) == 0 {
		return fmt.Errorf("name at least one source or pass --all (known: %v)", a.Registry.IDs())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	toStdout := flags.out == "-"
	store := output.NewStore(flags.out, format)
	doc := output.NewRunDocument(time.Now())
	failed := 0

	for _, id := range ids {
		rec, err := runOne(ctx, a.Registry, a.Runner, id, flags.pages, cfg.Session.RequestTimeout)
		if err != nil {
			failed++
			doc.Fail(id, models.AsScrapeError(err).ToDetail())
			logError(cmd.ErrOrStderr(), "%s: %v", id, err)
			continue
		}
		doc.Add(id, rec)
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", id, summary(rec))

		if toStdout {
			continue
		}
		path, err := store.WriteRecord(rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] Saved to: %s\n", id, path)
	}

	switch {
	case toStdout && len(ids) == 1 && failed == 0:
		if err := output.Encode(cmd.OutOrStdout(), format, doc.Results[ids[0]]); err != nil {
			return err
		}
	case toStdout:
		if err := output.Encode(cmd.OutOrStdout(), format, doc); err != nil {
			return err
		}
	case len(ids) > 1:
		path, err := store.WriteRun(doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[combined] Saved to: %s\n", path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(ids))
	}
	return nil
}

func runOne(ctx context.Context, reg *sources.Registry, rn *scraper.Runner, id string, pages int, timeout time.Duration) (models.Record, error) {
	src, ok := reg.Get(id)
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeUnknownSource, "unknown source: "+id, nil)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return rn.Run(ctx, src, pages)
}

// summary is the one-line progress message for a record.
func summary(rec models.Record) string {
	switch r := rec.(type) {
	case *models.PagedListingRecord:
		return fmt.Sprintf("Scraped %d items from %d pages", len(r.Items), r.PagesVisited)
	case *models.ListingRecord:
		return fmt.Sprintf("Scraped %d items", len(r.Items))
	case *models.LatestPostRecord:
		return fmt.Sprintf("Latest post: %q", r.Title)
	default:
		return "Extracted " + string(rec.Kind())
	}
}

// seo-batch runs SEO generation batches against the backend from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vrsandeep/seo-batch/internal/batch"
	"github.com/vrsandeep/seo-batch/internal/core"
	"github.com/vrsandeep/seo-batch/internal/langdetect"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/orchestrator"
	"github.com/vrsandeep/seo-batch/internal/render"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

var cfgPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seo-batch",
		Short: "Batch SEO page generation against the multi-agent backend",
		Long: `seo-batch submits URL batches to the SEO generation backend, follows
per-item progress, and writes the results and link-risk exports to disk.

Commands:
  run       Process a batch of URLs
  detect    Detect the language of a text
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ./config.yml when present)")

	root.AddCommand(
		newRunCmd(),
		newDetectCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seo-batch version %s\n", core.Version)
		},
	}
}

// ---------------------------------------------------------------------------
// detect
// ---------------------------------------------------------------------------

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text...]",
		Short: "Detect the language (uk, ru, en) of a text",
		Long:  `Detect the language of the arguments, or of stdin when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), langdetect.Detect(text))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

type runOptions struct {
	urls           string
	urlsFile       string
	keywordsFile   string
	csvFile        string
	manualFile     string
	generationMode string
	brand          string
	businessType   string
	audience       string
	outDir         string
	delay          time.Duration
	noSave         bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a batch of URLs",
		Long: `Process a batch of URLs one at a time, following backend progress.

Input comes from exactly one of:
  --urls / --urls-file   one URL per line, with optional --keywords file
  --csv                  url,topic[,brand[,business_type]] rows
  --manual               same row format as --csv

Results are saved to the run history and written to --out as
seo-results-<id>.csv, link-analysis-<id>.csv and the domain lists.
Ctrl-C stops the batch; the remaining items are recorded as cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, cmd.Flags().Changed("delay"))
		},
	}

	cmd.Flags().StringVar(&opts.urls, "urls", "", "Comma or newline separated URLs")
	cmd.Flags().StringVar(&opts.urlsFile, "urls-file", "", "File with one URL per line")
	cmd.Flags().StringVar(&opts.keywordsFile, "keywords", "", "File with one keyword per line, matched to URLs by line")
	cmd.Flags().StringVar(&opts.csvFile, "csv", "", "CSV file with url,topic[,brand[,business_type]] rows")
	cmd.Flags().StringVar(&opts.manualFile, "manual", "", "File with manual url,topic rows")
	cmd.Flags().StringVarP(&opts.generationMode, "mode", "m", "", "Generation mode: auto, chatgpt, meta (default from config)")
	cmd.Flags().StringVar(&opts.brand, "brand", "", "Brand applied to every item")
	cmd.Flags().StringVar(&opts.businessType, "business-type", "", "Business type applied to every item")
	cmd.Flags().StringVar(&opts.audience, "audience", "", "Target audience")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory for export files")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "Pause between items (default from config)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not store the run in the history database")

	return cmd
}

func runBatch(cmd *cobra.Command, opts runOptions, delaySet bool) error {
	app, err := core.New(cfgPath)
	if err != nil {
		return err
	}
	defer app.Close()
	cfg := app.Config()

	form := batch.Form{
		Mode:           batch.ParseMode(firstNonEmpty(opts.generationMode, cfg.Batch.GenerationMode)),
		Brand:          firstNonEmpty(opts.brand, cfg.Form.Brand),
		BusinessType:   firstNonEmpty(opts.businessType, cfg.Form.BusinessType),
		TargetAudience: firstNonEmpty(opts.audience, cfg.Form.TargetAudience),
	}
	items, err := readItems(opts, form)
	if err != nil {
		return err
	}
	if err := batch.Validate(items); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := app.NewRunner(form.Mode, orchestrator.LogReporter{Logger: app.Logger().Named("batch")})
	if delaySet {
		runner.Delay = opts.delay
	}

	logInfo("processing %d item(s) in %s mode", len(items), form.Mode)
	run, err := runner.Run(ctx, items)
	if run == nil {
		return err
	}
	interrupted := errors.Is(err, context.Canceled)
	run.Mode = string(form.Mode)
	render.ReconcileRun(run)

	if !opts.noSave {
		if err := app.Store().SaveRun(run); err != nil {
			logWarning("could not save run %s: %v", run.ID, err)
		}
	}

	printReport(cmd.OutOrStdout(), render.RenderRun(run))

	files, err := writeExports(opts.outDir, run)
	if err != nil {
		return err
	}
	for _, f := range files {
		logSuccess("wrote %s", f)
	}
	if interrupted {
		logWarning("batch interrupted; remaining items were cancelled")
	}
	return nil
}

// readItems parses whichever input source was given. Exactly one is allowed.
func readItems(opts runOptions, form batch.Form) ([]models.WorkItem, error) {
	sources := 0
	for _, s := range []string{opts.urls + opts.urlsFile, opts.csvFile, opts.manualFile} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return nil, errors.New("no input: use --urls, --urls-file, --csv or --manual")
	case sources > 1:
		return nil, errors.New("use only one of --urls/--urls-file, --csv, --manual")
	}

	switch {
	case opts.csvFile != "":
		text, err := readText(opts.csvFile)
		if err != nil {
			return nil, err
		}
		return batch.ParseCSV(text, form), nil
	case opts.manualFile != "":
		text, err := readText(opts.manualFile)
		if err != nil {
			return nil, err
		}
		return batch.ParseManual(text, form), nil
	}

	urls := strings.ReplaceAll(opts.urls, ",", "\n")
	if opts.urlsFile != "" {
		text, err := readText(opts.urlsFile)
		if err != nil {
			return nil, err
		}
		urls = joinLines(urls, text)
	}
	var keywords string
	if opts.keywordsFile != "" {
		text, err := readText(opts.keywordsFile)
		if err != nil {
			return nil, err
		}
		keywords = text
	}
	return batch.ParseSimpleList(urls, keywords, form), nil
}

// readText reads a whole input file and drops a UTF-8 byte order mark.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func joinLines(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func printReport(w io.Writer, rep render.Report) {
	for i, c := range rep.Cards {
		mark := colorGreen + "OK  " + colorReset
		if !c.Succeeded {
			mark = colorRed + "FAIL" + colorReset
		}
		fmt.Fprintf(w, "%s %3d. %s (%.1fs)\n", mark, i+1, c.URL, c.DurationSeconds)
		if !c.Succeeded {
			fmt.Fprintf(w, "          %s\n", c.Error)
			continue
		}
		if c.Title != "" {
			fmt.Fprintf(w, "          title: %s\n", c.Title)
		}
		if c.Score != nil {
			fmt.Fprintf(w, "          score: %.1f\n", *c.Score)
		}
		if c.Links != nil {
			fmt.Fprintf(w, "          links: %d (toxic %d, suspicious %d, good %d)\n",
				c.Links.Total, c.Links.Toxic, c.Links.Suspicious, c.Links.Good)
		}
	}
	t := rep.Totals
	fmt.Fprintf(w, "\nRun %s: %d of %d succeeded, %d failed (%.1f%%)\n",
		rep.RunID, t.Succeeded, t.Total, t.Failed, t.SuccessRate)
	if rep.Toxic+rep.Suspicious > 0 {
		fmt.Fprintf(w, "Domains: %d toxic, %d suspicious\n", rep.Toxic, rep.Suspicious)
	}
}

// writeExports writes the result CSV and, when the run has link analysis, the
// link CSV and non-empty domain lists. It returns the paths written.
func writeExports(dir string, run *models.BatchRun) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	var written []string
	write := func(name string, fill func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fill(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(fmt.Sprintf("seo-results-%s.csv", run.ID), func(w io.Writer) error {
		return render.WriteOutcomesCSV(w, run.Outcomes)
	}); err != nil {
		return written, err
	}

	details := render.CollectLinkDetails(run)
	if len(details) == 0 {
		return written, nil
	}
	if err := write(fmt.Sprintf("link-analysis-%s.csv", run.ID), func(w io.Writer) error {
		return render.WriteLinkDetailsCSV(w, details)
	}); err != nil {
		return written, err
	}
	for _, risk := range []render.Risk{render.RiskToxic, render.RiskSuspicious} {
		if len(render.Domains(details, risk)) == 0 {
			continue
		}
		if err := write(fmt.Sprintf("%s-domains-%s.txt", risk, run.ID), func(w io.Writer) error {
			return render.WriteDomainList(w, details, risk)
		}); err != nil {
			return written, err
		}
	}
	return written, nil
}

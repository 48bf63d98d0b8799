// cadq queries the JPL close-approach data API from a terminal.
//
// Usage:
//
//	cadq [options]          Run one search and print the results
//	cadq shell [options]    Interactive session; options set the starting filters
//
// Options:
//
//	-b, --body        Body name or code (default: Earth)
//	    --date-min    Start date, YYYY-MM-DD or "now"
//	    --date-max    End date, YYYY-MM-DD (not with --days)
//	-d, --days        Days from start, 1-36525 (default: 60; not with --date-max)
//	    --dist-max    Maximum distance in the selected unit
//	-u, --unit        AU or LD
//	-n, --limit       Maximum rows per category, 1-1000
//	-t, --type        neo, comet or both
//	    --csv         Write results to a CSV file
//	    --s3-key      Upload results as CSV to the configured bucket under this key
//	    --trend       Print a least squares trend of distance over time
//	    --source-url  Provider endpoint
//	    --timeout     Provider timeout (default: 30s)
//	    --config      Config file (default: ~/.config/cadq/config.json)
//	-v, --verbose     Log provider calls to stderr
//
// Defaults come from the config file, a JSON file that may contain comments.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/config"
	"github.com/star/closeapproach/internal/export"
	"github.com/star/closeapproach/internal/table"
	"github.com/star/closeapproach/internal/trend"
)

var errUsage = errors.New("invalid usage")

// options holds parsed command-line settings.
type options struct {
	query     cad.Query
	csvPath   string
	s3Key     string
	trend     bool
	sourceURL string
	timeout   time.Duration
	verbose   bool
	file      config.CLIConfig
}

// searcher runs a search. *cad.Runner implements it.
type searcher interface {
	Run(ctx context.Context, q cad.Query) (*cad.Result, error)
}

// uploader stores CSV exports remotely. *export.S3Uploader implements it.
type uploader interface {
	ObjectKey(body cad.Body, ts time.Time) string
	Upload(ctx context.Context, key string, rows cad.RowSet) (string, error)
}

func main() {
	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:], os.Environ()))
}

func run(out, errOut io.Writer, args []string, env []string) int {
	shellMode := len(args) > 0 && args[0] == "shell"
	if shellMode {
		args = args[1:]
	}

	opts, err := parseFlags(args, env)
	if errors.Is(err, flag.ErrHelp) {
		printUsage(out)
		return 0
	}
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: level}))

	runner := cad.NewRunner(newFetcher(opts, logger), nil, logger)

	if shellMode {
		if err := newShell(out, runner, opts, logger).Run(); err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		return 0
	}

	if err := opts.query.Validate(); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}
	if err := search(context.Background(), out, runner, opts, logger); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

// parseFlags reads the config file, then applies flags over it.
func parseFlags(args []string, env []string) (options, error) {
	fs := flag.NewFlagSet("cadq", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringP("body", "b", "", "body name or code")
	fs.String("date-min", "", "start date (YYYY-MM-DD or now)")
	fs.String("date-max", "", "end date (YYYY-MM-DD)")
	fs.IntP("days", "d", 0, "days from start")
	fs.String("dist-max", "", "maximum distance")
	fs.StringP("unit", "u", "", "distance unit (AU or LD)")
	fs.IntP("limit", "n", 0, "maximum rows per category")
	fs.StringP("type", "t", "", "object type (neo, comet, both)")
	csvPath := fs.String("csv", "", "write results to a CSV file")
	s3Key := fs.String("s3-key", "", "upload results to S3 under this key")
	withTrend := fs.Bool("trend", false, "print a distance trend line")
	sourceURL := fs.String("source-url", "", "provider endpoint")
	timeout := fs.Duration("timeout", cad.DefaultTimeout, "provider timeout")
	cfgPath := fs.String("config", config.CLIConfigPath(env), "config file")
	verbose := fs.BoolP("verbose", "v", false, "log provider calls")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	fileCfg, _, err := config.LoadCLI(*cfgPath)
	if err != nil {
		return options{}, err
	}
	q, err := fileCfg.Query()
	if err != nil {
		return options{}, fmt.Errorf("%s: %w", *cfgPath, err)
	}

	if err := cad.CheckDateKeys(fs.Changed); err != nil {
		return options{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	for _, key := range cad.ParamKeys {
		if !fs.Changed(key) {
			continue
		}
		if err := q.Set(key, fs.Lookup(key).Value.String()); err != nil {
			return options{}, fmt.Errorf("--%s: %w", key, err)
		}
	}
	if err := q.ResolveOffset(); err != nil {
		return options{}, err
	}

	opts := options{
		query:     q,
		csvPath:   *csvPath,
		s3Key:     *s3Key,
		trend:     *withTrend,
		sourceURL: fileCfg.SourceURL,
		timeout:   *timeout,
		verbose:   *verbose,
		file:      fileCfg,
	}
	if *sourceURL != "" {
		opts.sourceURL = *sourceURL
	}
	if opts.sourceURL == "" {
		opts.sourceURL = cad.DefaultSourceURL
	}
	if !fs.Changed("timeout") && fileCfg.TimeoutSecs > 0 {
		opts.timeout = time.Duration(fileCfg.TimeoutSecs) * time.Second
	}
	return opts, nil
}

func newFetcher(opts options, logger *slog.Logger) *cad.Fetcher {
	return cad.NewFetcher(opts.sourceURL, logger, cad.WithTimeout(opts.timeout))
}

func newUploader(ctx context.Context, cfg config.CLIConfig) (uploader, error) {
	u, err := export.NewS3Uploader(ctx, export.S3Config{
		Bucket:   cfg.S3Bucket,
		Prefix:   cfg.S3Prefix,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
		// MinIO and LocalStack endpoints need path-style addressing.
		UsePathStyle: cfg.S3Endpoint != "",
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// search runs one query and writes the table plus any requested exports.
func search(ctx context.Context, out io.Writer, runner searcher, opts options, logger *slog.Logger) error {
	res, err := runner.Run(ctx, opts.query)
	if err != nil {
		return err
	}

	if res.Empty() {
		fmt.Fprintf(out, "No close approaches to %s matched the selected filters.\n", opts.query.Body.Name)
		return nil
	}

	if err := table.Render(out, opts.query.Unit, res.Rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d close approaches to %s.\n", res.Rows.Len(), opts.query.Body.Name)

	if opts.trend {
		printTrend(out, res.Rows, opts.query.Unit, trend.Resolve(true))
	}

	if opts.csvPath != "" {
		if err := export.SaveFile(opts.csvPath, res.Rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", opts.csvPath)
	}

	if opts.s3Key != "" {
		up, err := newUploader(ctx, opts.file)
		if err != nil {
			return err
		}
		loc, err := up.Upload(ctx, opts.s3Key, res.Rows)
		if err != nil {
			return err
		}
		logger.Debug("uploaded export", "location", loc)
		fmt.Fprintf(out, "Uploaded %s\n", loc)
	}
	return nil
}

func printTrend(out io.Writer, rows cad.RowSet, unit cad.Unit, capability trend.Capability) {
	if !capability.Enabled {
		fmt.Fprintf(out, "Trend line unavailable: %s\n", capability.Reason)
		return
	}
	line, err := trend.Fit(trend.Points(rows))
	if err != nil {
		fmt.Fprintf(out, "Trend line unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Trend: %+.6g %s/day from %s (R² %.3f, %d points)\n",
		line.Slope, unit, line.Origin.Format(cad.DateLayout), line.RSquared, line.N)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: cadq [shell] [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Search the JPL close-approach data API.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  -b, --body=NAME       Body name or code [default: Earth]")
	fmt.Fprintln(out, "      --date-min=DATE   Start date, YYYY-MM-DD or now [default: now]")
	fmt.Fprintln(out, "      --date-max=DATE   End date, YYYY-MM-DD (not with --days)")
	fmt.Fprintln(out, "  -d, --days=N          Days from start [default: 60; not with --date-max]")
	fmt.Fprintln(out, "      --dist-max=X      Maximum distance [default: 0.05 AU, 10 LD]")
	fmt.Fprintln(out, "  -u, --unit=UNIT       "+strings.Join(unitNames(), " or ")+" [default: AU]")
	fmt.Fprintln(out, "  -n, --limit=N         Maximum rows per category [default: 100]")
	fmt.Fprintln(out, "  -t, --type=TYPE       neo, comet or both [default: neo]")
	fmt.Fprintln(out, "      --csv=FILE        Write results to a CSV file")
	fmt.Fprintln(out, "      --s3-key=KEY      Upload results to the configured S3 bucket")
	fmt.Fprintln(out, "      --trend           Print a distance trend line")
	fmt.Fprintln(out, "      --source-url=URL  Provider endpoint")
	fmt.Fprintln(out, "      --timeout=DUR     Provider timeout [default: 30s]")
	fmt.Fprintln(out, "      --config=FILE     Config file")
	fmt.Fprintln(out, "  -v, --verbose         Log provider calls")
}

func unitNames() []string {
	names := make([]string, len(cad.Units))
	for i, u := range cad.Units {
		names[i] = string(u)
	}
	return names
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/export"
	"github.com/star/closeapproach/internal/session"
	"github.com/star/closeapproach/internal/table"
	"github.com/star/closeapproach/internal/trend"
)

var shellCommands = []string{"fetch", "set", "show", "export", "trend", "help", "quit", "exit"}

// shell keeps one session across commands: filters edited with set, and
// the rows of the last fetch.
type shell struct {
	out      io.Writer
	runner   searcher
	store    *session.Store
	id       string
	query    cad.Query
	opts     options
	logger   *slog.Logger
	uploader uploader // created on first S3 export
	liner    *liner.State
}

func newShell(out io.Writer, runner searcher, opts options, logger *slog.Logger) *shell {
	store := session.NewStore(0, logger)
	return &shell{
		out:    out,
		runner: runner,
		store:  store,
		id:     store.GetOrCreate("").ID,
		query:  opts.query,
		opts:   opts,
		logger: logger,
	}
}

func (sh *shell) historyFile() string {
	if sh.opts.file.History != "" {
		return sh.opts.file.History
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cadq_history")
}

// Run starts the read-eval loop.
func (sh *shell) Run() error {
	sh.liner = liner.NewLiner()
	defer sh.liner.Close()

	sh.liner.SetCtrlCAborts(true)
	sh.liner.SetCompleter(sh.completer)

	if f, err := os.Open(sh.historyFile()); err == nil {
		sh.liner.ReadHistory(f)
		f.Close()
	}
	defer sh.saveHistory()

	fmt.Fprintln(sh.out, "cadq - close-approach shell. Type 'help' for commands.")

	for {
		line, err := sh.liner.Prompt("cadq> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.liner.AppendHistory(line)

		if quit := sh.exec(context.Background(), line); quit {
			return nil
		}
	}
}

func (sh *shell) saveHistory() {
	if path := sh.historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			sh.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (sh *shell) completer(line string) []string {
	var out []string
	lower := strings.ToLower(line)
	if rest, ok := strings.CutPrefix(lower, "set "); ok {
		for _, k := range cad.ParamKeys {
			if strings.HasPrefix(k, rest) {
				out = append(out, "set "+k+" ")
			}
		}
		return out
	}
	for _, c := range shellCommands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}
	return out
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		sh.printHelp()
	case "fetch":
		err = sh.cmdFetch(ctx)
	case "set":
		err = sh.cmdSet(args)
	case "show":
		sh.cmdShow()
	case "export":
		err = sh.cmdExport(ctx, args)
	case "trend":
		err = sh.cmdTrend()
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintln(sh.out, "error:", err)
	}
	return false
}

func (sh *shell) printHelp() {
	fmt.Fprintln(sh.out, "Commands:")
	fmt.Fprintln(sh.out, "  fetch                  Search with the current filters")
	fmt.Fprintln(sh.out, "  set KEY VALUE          Change a filter ("+strings.Join(cad.ParamKeys, ", ")+")")
	fmt.Fprintln(sh.out, "  show                   Print the filters and the last results")
	fmt.Fprintln(sh.out, "  export csv FILE        Save the last results as CSV")
	fmt.Fprintln(sh.out, "  export s3 [KEY]        Upload the last results to S3")
	fmt.Fprintln(sh.out, "  trend                  Fit a distance trend line to the last results")
	fmt.Fprintln(sh.out, "  help                   Show this help")
	fmt.Fprintln(sh.out, "  quit                   Exit")
}

func (sh *shell) current() (*session.Session, error) {
	sess, ok := sh.store.Get(sh.id)
	if !ok || !sess.HasResult {
		return nil, errors.New("no results yet, run fetch first")
	}
	return sess, nil
}

func (sh *shell) cmdFetch(ctx context.Context) error {
	q := sh.query
	if err := q.ResolveOffset(); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}

	res, err := sh.runner.Run(ctx, q)
	if err != nil {
		return err
	}
	sess := sh.store.Replace(sh.id, res)
	sh.logger.Debug("shell fetch complete", "rows", res.Rows.Len(), "calls", res.Calls)

	if res.Empty() {
		fmt.Fprintf(sh.out, "No close approaches to %s matched the selected filters.\n", sess.BodyName())
		return nil
	}
	if err := table.Render(sh.out, sess.Unit(), sess.Rows); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "\n%d close approaches to %s.\n", sess.Rows.Len(), sess.BodyName())
	return nil
}

func (sh *shell) cmdSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set KEY VALUE (keys: %s)", strings.Join(cad.ParamKeys, ", "))
	}
	q := sh.query
	if err := q.Set(strings.ToLower(args[0]), strings.Join(args[1:], " ")); err != nil {
		return err
	}
	sh.query = q
	return nil
}

func (sh *shell) cmdShow() {
	q := sh.query
	fmt.Fprintf(sh.out, "body=%s date-min=%s date-max=%s dist-max=%s%s limit=%d type=%s\n",
		q.Body.Name, q.DateMin, q.DateMax, q.MaxDistance, q.Unit, q.Limit, q.ObjectType)

	sess, err := sh.current()
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	fmt.Fprintf(sh.out, "Last fetch: %s, %d rows\n", sess.FetchedAt.Format("2006-01-02 15:04:05"), sess.Rows.Len())
	table.Render(sh.out, sess.Unit(), sess.Rows)
}

func (sh *shell) cmdExport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: export csv FILE | export s3 [KEY]")
	}
	sess, err := sh.current()
	if err != nil {
		return err
	}

	switch args[0] {
	case "csv":
		path := export.DefaultFilename
		if len(args) > 1 {
			path = args[1]
		}
		if err := export.SaveFile(path, sess.Rows); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Wrote %d rows to %s\n", sess.Rows.Len(), path)
	case "s3":
		if sh.uploader == nil {
			up, err := newUploader(ctx, sh.opts.file)
			if err != nil {
				return err
			}
			sh.uploader = up
		}
		key := sh.uploader.ObjectKey(sess.Query.Body, sess.FetchedAt)
		if len(args) > 1 {
			key = args[1]
		}
		loc, err := sh.uploader.Upload(ctx, key, sess.Rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Uploaded %s\n", loc)
	default:
		return fmt.Errorf("unknown export target %q", args[0])
	}
	return nil
}

func (sh *shell) cmdTrend() error {
	sess, err := sh.current()
	if err != nil {
		return err
	}
	printTrend(sh.out, sess.Rows, sess.Unit(), trend.Resolve(true))
	return nil
}

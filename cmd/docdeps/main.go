// docdeps lists the transitive dependencies of a standards document.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/docdeps/internal/config"
	"github.com/nainya/docdeps/internal/logger"
	"github.com/nainya/docdeps/internal/server"
	"github.com/nainya/docdeps/pkg/document"
	"github.com/nainya/docdeps/pkg/resolver"
)

const Version = "1.0.0"

// Exit statuses
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError is reported with the usage text and exitUsage
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type options struct {
	configPath    string
	corpusPath    string
	ref           string
	normative     bool
	bibliographic bool
	onMissing     string
	maxDepth      int
	logLevel      string
	logPretty     bool
	remote        string
	timeout       time.Duration
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprint(stderr, cmd.UsageString())
		return exitUsage
	}
	return exitError
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "docdeps [flags] <docId>",
		Short: "List the transitive dependencies of a standards document",
		Long: `docdeps resolves every document reachable from <docId> through one
reference category (normative or bibliographic) and prints one line per
dependency, sorted by identifier:

  <docId> (<docLabel>, <docTitle>) <qualifier>

where <qualifier> is [S] for superseded, [W] for withdrawn, or empty.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("expected exactly one document id, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolve(cmd, opts, args[0], stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML, default ./"+config.ProjectConfigFile+" if present)")
	flags.StringVar(&opts.corpusPath, "corpus", "", "Corpus file (JSON array of documents)")
	flags.StringVarP(&opts.ref, "ref", "r", "", "Reference category to follow: normative or bibliographic")
	flags.BoolVarP(&opts.normative, "normative", "n", false, "Follow normative references (same as --ref normative)")
	flags.BoolVarP(&opts.bibliographic, "bibliographic", "b", false, "Follow bibliographic references (same as --ref bibliographic)")
	flags.StringVar(&opts.onMissing, "on-missing", "", "Dangling reference policy: fail or skip")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "Maximum reference hops to follow (0 = unlimited)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.logPretty, "log-pretty", true, "Human-readable log output")
	flags.StringVar(&opts.remote, "remote", "", "Resolve through a docdepsd server at host:port")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for --remote calls")

	return cmd
}

// selectCategory picks at most one category from --ref, -n and -b.
// It returns "" when none of them is set.
func selectCategory(ref string, normative, bibliographic bool) (document.Category, error) {
	set := 0
	for _, on := range []bool{ref != "", normative, bibliographic} {
		if on {
			set++
		}
	}
	if set > 1 {
		return "", usagef("--ref, -n and -b are mutually exclusive")
	}

	switch {
	case normative:
		return document.Normative, nil
	case bibliographic:
		return document.Bibliographic, nil
	case ref == "":
		return "", nil
	}

	cat, err := document.ParseCategory(ref)
	if err != nil {
		return "", &usageError{err: err}
	}
	return cat, nil
}

func resolve(cmd *cobra.Command, opts options, docID string, stdout, stderr io.Writer) error {
	flags := cmd.Flags()

	// Flag mistakes are usage errors whatever the config file holds
	category, err := selectCategory(opts.ref, opts.normative, opts.bibliographic)
	if err != nil {
		return err
	}
	var policy resolver.MissingPolicy
	if flags.Changed("on-missing") {
		if policy, err = resolver.ParseMissingPolicy(opts.onMissing); err != nil {
			return &usageError{err: err}
		}
	}
	if flags.Changed("max-depth") && opts.maxDepth < 0 {
		return usagef("--max-depth must not be negative")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if flags.Changed("corpus") {
		cfg.Corpus.Path = opts.corpusPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = opts.logPretty
	}

	resolveOpts, err := cfg.ResolveOptions()
	if err != nil {
		return err
	}
	if category != "" {
		resolveOpts.Category = category
	}
	if policy != "" {
		resolveOpts.OnMissing = policy
	}
	if flags.Changed("max-depth") {
		resolveOpts.MaxDepth = opts.maxDepth
	}

	log := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: stderr,
	})

	var entries []resolver.Entry
	if opts.remote != "" {
		entries, err = resolveRemote(cmd.Context(), opts, docID, resolveOpts, log)
	} else {
		entries, err = resolveLocal(cfg.Corpus.Path, docID, resolveOpts, log)
	}
	if err != nil {
		return err
	}

	return resolver.WriteListing(stdout, entries)
}

func resolveLocal(corpusPath, docID string, opts resolver.Options, log *logger.Logger) ([]resolver.Entry, error) {
	start := time.Now()
	store, err := document.Load(corpusPath)
	if err != nil {
		log.LogCorpusLoad(corpusPath, time.Since(start), 0, err)
		return nil, err
	}
	log.LogCorpusLoad(corpusPath, time.Since(start), store.Len(), nil)
	if n := store.Overwrites(); n > 0 {
		log.CorpusLogger(corpusPath).Warn("duplicate docId in corpus").Int("overwritten", n).Send()
	}

	start = time.Now()
	result, err := resolver.Resolve(store, docID, opts)
	if err != nil {
		log.LogResolution(docID, string(opts.Category), time.Since(start), 0, err)
		return nil, err
	}
	log.LogResolution(docID, string(opts.Category), time.Since(start), result.Len(), nil)

	warnMissing(log, docID, opts.Category, result.Missing)
	return resolver.Entries(store, result)
}

func resolveRemote(ctx context.Context, opts options, docID string, resolveOpts resolver.Options, log *logger.Logger) ([]resolver.Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	client, err := server.Dial(opts.remote)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	resp, err := client.Resolve(ctx, server.ResolveRequest{
		DocID:     docID,
		Category:  string(resolveOpts.Category),
		OnMissing: string(resolveOpts.OnMissing),
		MaxDepth:  server.Depth(resolveOpts.MaxDepth),
	})
	if err != nil {
		return nil, err
	}

	warnMissing(log, docID, resolveOpts.Category, resp.Missing)
	return resp.Entries, nil
}

func warnMissing(log *logger.Logger, docID string, cat document.Category, missing []string) {
	if len(missing) == 0 {
		return
	}
	rlog := log.ResolverLogger(docID, string(cat))
	for _, id := range missing {
		rlog.Warn("dangling reference skipped").Str("ref", id).Send()
	}
}

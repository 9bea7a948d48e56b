package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/rohmanhakim/scoutly/internal/build"
	"github.com/rohmanhakim/scoutly/internal/config"
	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/internal/output"
	"github.com/rohmanhakim/scoutly/internal/scheduler"
	"github.com/rohmanhakim/scoutly/pkg/hashutil"
	"github.com/rohmanhakim/scoutly/pkg/urlutil"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFilePath         string
	flagDepth           int
	flagMaxPages        int
	flagOutput          string
	flagSave            string
	flagExternal        bool
	flagVerbose         bool
	flagIgnoreRedirects bool
	flagKeepFragments   bool
	flagRateLimit       float64
	flagConcurrency     int
	flagRespectRobots   bool
)

// rootCmd is scoutly's single command: crawl the given URL and print an SEO
// audit report. There are no subcommands (spec.md §6 names one positional
// argument and a flat flag set).
var rootCmd = &cobra.Command{
	Use:   "scoutly <url>",
	Short: "Crawl a website and report on-page SEO and link-health findings.",
	Long: `scoutly crawls a website starting from a single URL, following
same-site (and optionally external) links breadth-first, and reports title,
meta description, heading, image-alt, and Open Graph findings alongside
broken and redirected links.

It makes no changes to the crawled site: every request is a plain GET, and
nothing discovered during the crawl is written back anywhere but the report.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       build.FullVersion(),
	RunE:          runCrawl,
}

// Execute runs the root command. Called once from cmd/scoutly/main.go; a
// non-nil error here is always a startup error (spec.md §6's exit-code
// rule), so it alone decides the process exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scoutly: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVarP(&flagDepth, "depth", "d", 5, "maximum link depth from the start URL")
	flags.IntVarP(&flagMaxPages, "max-pages", "m", 200, "maximum number of pages to fetch")
	flags.StringVarP(&flagOutput, "output", "o", "text", `report format: "text" or "json"`)
	flags.StringVarP(&flagSave, "save", "s", "", "write the report to this path instead of stdout")
	flags.BoolVarP(&flagExternal, "external", "e", false, "follow external links for crawling (they are always validated)")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "emit progress events while the crawl runs")
	flags.BoolVar(&flagIgnoreRedirects, "ignore-redirects", false, "suppress redirect issues from the report")
	flags.BoolVar(&flagKeepFragments, "keep-fragments", false, "treat URLs differing only by fragment as distinct")
	flags.Float64VarP(&flagRateLimit, "rate-limit", "r", 0, "requests per second cap (0 means unlimited)")
	flags.IntVarP(&flagConcurrency, "concurrency", "c", 5, "number of concurrent fetch/validate workers")
	flags.BoolVar(&flagRespectRobots, "respect-robots-txt", true, "enforce robots.txt rules before fetching")
	flags.StringVar(&cfgFilePath, "config", "", "configuration file path (default: auto-discover)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	startURL, err := url.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid start url %q: %w", args[0], err)
	}

	cfg, err := buildConfig(cmd, *startURL)
	if err != nil {
		return err
	}

	// Canonicalize so runs against equivalent start URLs (differing only by
	// query string or a trailing slash) land on a comparable correlation id.
	canonicalStart := urlutil.Canonicalize(cfg.StartURL())
	runID, err := hashutil.HashBytes([]byte(fmt.Sprintf("%s-%d", canonicalStart.String(), time.Now().UnixNano())), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return fmt.Errorf("deriving run id: %w", err)
	}

	level := zerolog.InfoLevel
	if cfg.Verbose() {
		level = zerolog.DebugLevel
	}
	recorder := metadata.NewRecorder(os.Stderr, level, runID[:12], cfg.Verbose())
	defer recorder.Close()

	if cfg.Verbose() {
		go renderProgress(cmd.ErrOrStderr(), recorder.Progress())
	}

	engine := scheduler.NewEngine(cfg, recorder)
	rpt := engine.Run(cmd.Context())

	format := output.FormatText
	if cfg.OutputFormat() == config.OutputJSON {
		format = output.FormatJSON
	}

	sink := output.NewStdoutSink(recorder, cmd.OutOrStdout())
	if werr := sink.Write(rpt, format, cfg.SavePath()); werr != nil {
		return fmt.Errorf("writing report: %w", werr)
	}

	return nil
}

// renderProgress prints one line per ProgressEvent until the recorder closes
// its channel at crawl end. It never blocks the engine: the channel it reads
// from is already buffered and drop-on-full (metadata.Recorder.RecordProgress).
func renderProgress(w io.Writer, events <-chan metadata.ProgressEvent) {
	for ev := range events {
		fmt.Fprintf(w, "crawled %d pages (%d links found, depth %d): %s\n", ev.PagesCrawled, ev.LinksFound, ev.Depth, ev.CurrentURL)
	}
}

// buildConfig layers, lowest priority first: spec.md §6's defaults, an
// auto-discovered or explicitly-named config file, then any CLI flag the
// user actually set on this invocation. A flag left at its zero value is
// indistinguishable from "not passed," so explicit-set flags are detected
// via cmd.Flags().Changed rather than comparing against the flag's default.
func buildConfig(cmd *cobra.Command, startURL url.URL) (config.Config, error) {
	builder, err := loadConfigFile(startURL)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		builder = builder.WithMaxDepth(flagDepth)
	}
	if flags.Changed("max-pages") {
		builder = builder.WithMaxPages(flagMaxPages)
	}
	if flags.Changed("output") {
		builder = builder.WithOutputFormat(config.OutputFormat(flagOutput))
	}
	if flags.Changed("save") {
		builder = builder.WithSavePath(flagSave)
	}
	if flags.Changed("external") {
		builder = builder.WithFollowExternal(flagExternal)
	}
	if flags.Changed("verbose") {
		builder = builder.WithVerbose(flagVerbose)
	}
	if flags.Changed("ignore-redirects") {
		builder = builder.WithIgnoreRedirects(flagIgnoreRedirects)
	}
	if flags.Changed("keep-fragments") {
		builder = builder.WithKeepFragments(flagKeepFragments)
	}
	if flags.Changed("rate-limit") {
		builder = builder.WithRateLimit(flagRateLimit)
	}
	if flags.Changed("concurrency") {
		builder = builder.WithConcurrency(flagConcurrency)
	}
	if flags.Changed("respect-robots-txt") {
		builder = builder.WithRespectRobotsTxt(flagRespectRobots)
	}

	return builder.Build()
}

// loadConfigFile resolves the config source per spec.md §6: an explicit
// --config path is a startup error if unreadable, auto-discovery is not
// (its absence just falls back to defaults).
func loadConfigFile(startURL url.URL) (*config.Config, error) {
	if cfgFilePath != "" {
		return config.WithConfigFile(startURL, cfgFilePath)
	}

	discovered, err := config.DiscoverConfigFile(userConfigDir())
	if err != nil || discovered == "" {
		return config.WithDefault(startURL), nil
	}
	return config.WithConfigFile(startURL, discovered)
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir
}

// ResetFlagsForTest restores every flag to its registered default and clears
// Changed, so successive tests don't see flags set by an earlier one.
func ResetFlagsForTest() {
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	cfgFilePath = ""
}

// SetFlagForTest marks name as explicitly set with the given value, the same
// way parsing os.Args would. Using Set (rather than writing the backing
// variable directly) keeps Changed in sync with the value.
func SetFlagForTest(t testingT, name, value string) {
	t.Helper()
	if err := rootCmd.Flags().Set(name, value); err != nil {
		t.Fatalf("setting flag %q to %q: %s", name, value, err)
	}
}

// testingT is the subset of *testing.T this package needs, kept as an
// interface so this file doesn't import "testing" into non-test builds.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// BuildConfigForTest runs buildConfig against the package-level rootCmd,
// letting tests drive flag precedence through SetFlagForTest/ResetFlagsForTest
// without starting a whole crawl.
func BuildConfigForTest(startURL url.URL) (config.Config, error) {
	return buildConfig(rootCmd, startURL)
}

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// OutputFormat is the closed set of report renderings the output sink knows
// how to produce.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// The single URL the crawl starts from. Same-site classification for
	// every other URL discovered during the run is anchored on this one.
	startURL url.URL
	// Whether links whose SiteOrigin differs from the start URL's are
	// followed for crawling. They are always validated regardless.
	followExternal bool

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from the start URL.
	maxDepth int
	// Maximum number of total documents the crawl may fetch.
	maxPages int

	//===============
	// Politeness
	//===============
	// Maximum number of crawl and validation worker goroutines sharing the
	// request dispatcher; it does not control OS threads or CPU parallelism.
	concurrency int
	// Global request budget in requests per second. Zero means unlimited.
	rateLimit float64
	// Whether robots.txt rules are enforced before fetching a URL.
	respectRobotsTxt bool
	// maximum attempt during retry
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration
	// randomized variation applied to each backoff delay; not user-facing,
	// just enough spread to keep retries from a burst of failures
	// re-synchronizing on the same schedule
	retryJitter time.Duration
	// seeds the retry backoff's random number generator
	retryRandomSeed int64

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request.
	timeout time.Duration
	// User agent sent with every request, including robots.txt fetches.
	userAgent string

	//===============
	// Report
	//===============
	// text or json.
	outputFormat OutputFormat
	// Where to write the finished report. Empty means stdout.
	savePath string
	// Whether Redirect issues are suppressed from the report.
	ignoreRedirects bool
	// Whether the fragment portion of a URL participates in link-equivalence.
	keepFragments bool
	// Whether progress events are emitted while the crawl runs.
	verbose bool
}

type configDTO struct {
	Depth            int     `json:"depth" toml:"depth" yaml:"depth"`
	MaxPages         int     `json:"max_pages" toml:"max_pages" yaml:"max_pages"`
	Output           string  `json:"output" toml:"output" yaml:"output"`
	Save             string  `json:"save" toml:"save" yaml:"save"`
	External         *bool   `json:"external" toml:"external" yaml:"external"`
	Verbose          *bool   `json:"verbose" toml:"verbose" yaml:"verbose"`
	IgnoreRedirects  *bool   `json:"ignore_redirects" toml:"ignore_redirects" yaml:"ignore_redirects"`
	KeepFragments    *bool   `json:"keep_fragments" toml:"keep_fragments" yaml:"keep_fragments"`
	RateLimit        float64 `json:"rate_limit" toml:"rate_limit" yaml:"rate_limit"`
	Concurrency      int     `json:"concurrency" toml:"concurrency" yaml:"concurrency"`
	RespectRobotsTxt *bool   `json:"respect_robots_txt" toml:"respect_robots_txt" yaml:"respect_robots_txt"`
}

// decodeConfigFile dispatches to the decoder selected by path's extension.
// All fields are optional; a zero value (or nil pointer for tri-state bools)
// means "not set in this file" and is left for CLI flags or defaults to fill.
func decodeConfigFile(path string) (configDTO, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return configDTO{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	dto := configDTO{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(content, &dto)
	case ".toml":
		err = toml.Unmarshal(content, &dto)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &dto)
	default:
		return configDTO{}, fmt.Errorf("%w: unrecognized extension %q", ErrConfigParsingFail, filepath.Ext(path))
	}
	if err != nil {
		return configDTO{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	return dto, nil
}

// DiscoverConfigFile looks for a config file in the order spec.md §6 names:
// first the working directory, then the user config directory. It returns
// an empty path (and no error) when nothing is found, since every config
// file is optional.
func DiscoverConfigFile(userConfigDir string) (string, error) {
	candidates := make([]string, 0, 8)
	for _, ext := range []string{"json", "toml", "yaml", "yml"} {
		candidates = append(candidates, fmt.Sprintf("scoutly.%s", ext))
	}
	if userConfigDir != "" {
		for _, ext := range []string{"json", "toml", "yaml", "yml"} {
			candidates = append(candidates, filepath.Join(userConfigDir, "scoutly", fmt.Sprintf("config.%s", ext)))
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// WithConfigFile loads path, applying its values on top of defaults for
// startURL. An explicit path that doesn't exist is a startup error; callers
// doing auto-discovery should check existence themselves via
// DiscoverConfigFile before calling this.
func WithConfigFile(startURL url.URL, path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}

	dto, err := decodeConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := WithDefault(startURL)

	if dto.Depth != 0 {
		cfg.maxDepth = dto.Depth
	}
	if dto.MaxPages != 0 {
		cfg.maxPages = dto.MaxPages
	}
	if dto.Output != "" {
		cfg.outputFormat = OutputFormat(dto.Output)
	}
	if dto.Save != "" {
		cfg.savePath = dto.Save
	}
	if dto.External != nil {
		cfg.followExternal = *dto.External
	}
	if dto.Verbose != nil {
		cfg.verbose = *dto.Verbose
	}
	if dto.IgnoreRedirects != nil {
		cfg.ignoreRedirects = *dto.IgnoreRedirects
	}
	if dto.KeepFragments != nil {
		cfg.keepFragments = *dto.KeepFragments
	}
	if dto.RateLimit != 0 {
		cfg.rateLimit = dto.RateLimit
	}
	if dto.Concurrency != 0 {
		cfg.concurrency = dto.Concurrency
	}
	if dto.RespectRobotsTxt != nil {
		cfg.respectRobotsTxt = *dto.RespectRobotsTxt
	}

	return cfg, nil
}

// WithDefault creates a new Config anchored on startURL, with spec.md §6's
// default values for every other field.
func WithDefault(startURL url.URL) *Config {
	return &Config{
		startURL:               startURL,
		followExternal:         false,
		maxDepth:               5,
		maxPages:               200,
		concurrency:            5,
		rateLimit:              0,
		respectRobotsTxt:       true,
		maxAttempt:             3,
		backoffInitialDuration: 100 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		retryJitter:            100 * time.Millisecond,
		retryRandomSeed:        time.Now().UnixNano(),
		timeout:                10 * time.Second,
		userAgent:              "scoutly/1.0",
		outputFormat:           OutputText,
		savePath:               "",
		ignoreRedirects:        false,
		keepFragments:          false,
		verbose:                false,
	}
}

func (c *Config) WithStartURL(u url.URL) *Config {
	c.startURL = u
	return c
}

func (c *Config) WithFollowExternal(follow bool) *Config {
	c.followExternal = follow
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.maxDepth = depth
	return c
}

func (c *Config) WithMaxPages(pages int) *Config {
	c.maxPages = pages
	return c
}

func (c *Config) WithConcurrency(concurrency int) *Config {
	c.concurrency = concurrency
	return c
}

func (c *Config) WithRateLimit(ratePerSecond float64) *Config {
	c.rateLimit = ratePerSecond
	return c
}

func (c *Config) WithRespectRobotsTxt(respect bool) *Config {
	c.respectRobotsTxt = respect
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithOutputFormat(format OutputFormat) *Config {
	c.outputFormat = format
	return c
}

func (c *Config) WithSavePath(path string) *Config {
	c.savePath = path
	return c
}

func (c *Config) WithIgnoreRedirects(ignore bool) *Config {
	c.ignoreRedirects = ignore
	return c
}

func (c *Config) WithKeepFragments(keep bool) *Config {
	c.keepFragments = keep
	return c
}

func (c *Config) WithVerbose(verbose bool) *Config {
	c.verbose = verbose
	return c
}

func (c *Config) Build() (Config, error) {
	if c.startURL.Host == "" {
		return Config{}, fmt.Errorf("%w: start url must be absolute", ErrInvalidConfig)
	}
	switch c.startURL.Scheme {
	case "http", "https":
	default:
		return Config{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConfig, c.startURL.Scheme)
	}
	if c.outputFormat != OutputText && c.outputFormat != OutputJSON {
		return Config{}, fmt.Errorf("%w: unsupported output format %q", ErrInvalidConfig, c.outputFormat)
	}
	if c.maxDepth < 0 {
		return Config{}, fmt.Errorf("%w: depth must be >= 0", ErrInvalidConfig)
	}
	if c.maxPages < 1 {
		return Config{}, fmt.Errorf("%w: max-pages must be >= 1", ErrInvalidConfig)
	}
	if c.concurrency < 1 {
		return Config{}, fmt.Errorf("%w: concurrency must be >= 1", ErrInvalidConfig)
	}
	if c.rateLimit < 0 {
		return Config{}, fmt.Errorf("%w: rate-limit must not be negative", ErrInvalidConfig)
	}

	return *c, nil
}

func (c Config) StartURL() url.URL {
	return c.startURL
}

func (c Config) FollowExternal() bool {
	return c.followExternal
}

func (c Config) MaxDepth() int {
	return c.maxDepth
}

func (c Config) MaxPages() int {
	return c.maxPages
}

func (c Config) Concurrency() int {
	return c.concurrency
}

func (c Config) RateLimit() float64 {
	return c.rateLimit
}

func (c Config) RespectRobotsTxt() bool {
	return c.respectRobotsTxt
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) RetryJitter() time.Duration {
	return c.retryJitter
}

func (c Config) RetryRandomSeed() int64 {
	return c.retryRandomSeed
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) OutputFormat() OutputFormat {
	return c.outputFormat
}

func (c Config) SavePath() string {
	return c.savePath
}

func (c Config) IgnoreRedirects() bool {
	return c.ignoreRedirects
}

func (c Config) KeepFragments() bool {
	return c.keepFragments
}

func (c Config) Verbose() bool {
	return c.verbose
}

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the address of the local classification service.
const DefaultEndpoint = "http://127.0.0.1:8000/predict"

// Environment variables read by Load.
const (
	EnvEndpoint = "PHISHGUARD_ENDPOINT"
	EnvRemote   = "PHISHGUARD_REMOTE"
	EnvLogLevel = "PHISHGUARD_LOG_LEVEL"
	EnvConfig   = "PHISHGUARD_CONFIG"
)

// Mode selects the invocation context the binary runs.
type Mode int

const (
	ModePopup Mode = iota
	ModeAuto
	ModeCheck
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeCheck:
		return "check"
	default:
		return "popup"
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "popup":
		return ModePopup, nil
	case "auto":
		return ModeAuto, nil
	case "check":
		return ModeCheck, nil
	default:
		return 0, fmt.Errorf("unsupported mode %q (want auto, check or popup)", value)
	}
}

// Config contains the runtime configuration.
type Config struct {
	Mode       Mode
	Endpoint   string
	Timeout    time.Duration
	Proxy      string
	Insecure   bool
	Match      []string
	Remote     string
	Headless   bool
	ConfigFile string
	LogLevel   string
}

// Default returns the configuration used when nothing is overridden. No
// timeout is applied to classification requests by default.
func Default() Config {
	return Config{
		Mode:     ModePopup,
		Endpoint: DefaultEndpoint,
		LogLevel: "info",
	}
}

// Validate checks values that cannot be rejected while parsing.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("--endpoint must not be empty")
	}
	if c.Timeout < 0 {
		return errors.New("--timeout must not be negative")
	}
	return nil
}

// ParseFlags builds the configuration from defaults, the optional YAML file,
// the environment and finally the command line flags.
func ParseFlags() (Config, error) {
	return parse(os.Args[1:], os.LookupEnv)
}

func parse(args []string, lookup func(string) (string, bool)) (Config, error) {
	fs := flag.CommandLine
	defaults := Default()

	var (
		modeRaw string
		fv      Config
	)

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintln(out, "Options:")

		printOption(out, "mode", "m", "string", "Invocation context: auto (scan every page load), check (one manual check of the active tab) or popup.", defaults.Mode.String())
		printOption(out, "endpoint", "e", "url", "Classification service endpoint.", defaults.Endpoint)
		printOption(out, "timeout", "t", "duration", "Maximum time to wait for the classification service (0 waits forever).", "")
		printOption(out, "proxy", "", "string", "Forward classification requests through the provided proxy (e.g. http://127.0.0.1:8080).", "")
		printOption(out, "insecure", "", "", "Skip TLS certificate verification for an HTTPS endpoint.", "")
		printOption(out, "match", "", "glob", "Page URL pattern the automatic scan runs on. May be repeated or comma separated.", "http://*,https://*")
		printOption(out, "remote", "r", "url", "DevTools websocket URL of a running browser to attach to.", "")
		printOption(out, "headless", "", "", "Launch the browser without a window. Page notifications are dismissed automatically.", "")
		printOption(out, "config", "c", "path", "YAML configuration file.", "")
		printOption(out, "log-level", "", "string", "Log level (debug, info, warn, error).", defaults.LogLevel)
	}

	fs.StringVar(&modeRaw, "mode", "", "Invocation context: auto, check or popup.")
	registerStringAlias(fs, "m", "mode", &modeRaw)

	fs.StringVar(&fv.Endpoint, "endpoint", "", "Classification service endpoint.")
	registerStringAlias(fs, "e", "endpoint", &fv.Endpoint)

	fs.DurationVar(&fv.Timeout, "timeout", 0, "Maximum time to wait for the classification service (0 waits forever).")
	registerDurationAlias(fs, "t", "timeout", &fv.Timeout)

	fs.StringVar(&fv.Proxy, "proxy", "", "Forward classification requests through the provided proxy.")
	fs.BoolVar(&fv.Insecure, "insecure", false, "Skip TLS certificate verification for an HTTPS endpoint.")

	fs.Var(newListCollector(&fv.Match), "match", "Page URL pattern the automatic scan runs on. May be repeated or comma separated.")

	fs.StringVar(&fv.Remote, "remote", "", "DevTools websocket URL of a running browser to attach to.")
	registerStringAlias(fs, "r", "remote", &fv.Remote)

	fs.BoolVar(&fv.Headless, "headless", false, "Launch the browser without a window.")

	fs.StringVar(&fv.ConfigFile, "config", "", "YAML configuration file.")
	registerStringAlias(fs, "c", "config", &fv.ConfigFile)

	fs.StringVar(&fv.LogLevel, "log-level", "", "Log level (debug, info, warn, error).")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[canonicalName(f.Name)] = true
	})

	cfg := defaults

	path := fv.ConfigFile
	if !set["config"] {
		if env, ok := lookup(EnvConfig); ok {
			path = strings.TrimSpace(env)
		}
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = path
	}

	applyEnv(&cfg, lookup)

	if set["mode"] {
		mode, err := ParseMode(modeRaw)
		if err != nil {
			return Config{}, err
		}
		cfg.Mode = mode
	}
	if set["endpoint"] {
		cfg.Endpoint = strings.TrimSpace(fv.Endpoint)
	}
	if set["timeout"] {
		cfg.Timeout = fv.Timeout
	}
	if set["proxy"] {
		cfg.Proxy = fv.Proxy
	}
	if set["insecure"] {
		cfg.Insecure = fv.Insecure
	}
	if set["match"] {
		cfg.Match = fv.Match
	}
	if set["remote"] {
		cfg.Remote = fv.Remote
	}
	if set["headless"] {
		cfg.Headless = fv.Headless
	}
	if set["log-level"] {
		cfg.LogLevel = fv.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvEndpoint); ok && strings.TrimSpace(v) != "" {
		cfg.Endpoint = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRemote); ok && strings.TrimSpace(v) != "" {
		cfg.Remote = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
}

var aliases = map[string]string{
	"m": "mode",
	"e": "endpoint",
	"t": "timeout",
	"r": "remote",
	"c": "config",
}

func canonicalName(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

func registerStringAlias(fs *flag.FlagSet, name, canonical string, target *string) {
	fs.Var(&stringAlias{target: target}, name, fmt.Sprintf("Alias for --%s", canonical))
}

func registerDurationAlias(fs *flag.FlagSet, name, canonical string, target *time.Duration) {
	fs.Var(&durationAlias{target: target}, name, fmt.Sprintf("Alias for --%s", canonical))
}

func printOption(out io.Writer, primary, alias, value, description, defaultValue string) {
	line := fmt.Sprintf("  -%s", primary)
	if alias != "" {
		line += fmt.Sprintf(" (-%s)", alias)
	}
	if value != "" {
		line += " " + value
	}
	if defaultValue != "" {
		line += fmt.Sprintf(" (default %s)", defaultValue)
	}

	fmt.Fprintln(out, line)
	fmt.Fprintf(out, "        %s\n", description)
}

type stringAlias struct {
	target *string
}

func (s *stringAlias) Set(value string) error {
	*s.target = value
	return nil
}

func (s *stringAlias) String() string {
	if s.target == nil {
		return ""
	}
	return *s.target
}

type durationAlias struct {
	target *time.Duration
}

func (d *durationAlias) Set(value string) error {
	parsed, err := parseDuration(value)
	if err != nil {
		return err
	}
	*d.target = parsed
	return nil
}

func (d *durationAlias) String() string {
	if d.target == nil {
		return ""
	}
	return d.target.String()
}

// parseDuration accepts Go durations and plain seconds.
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("duration requires a value")
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		seconds, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, err
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return parsed, nil
}

type listCollector struct {
	target *[]string
}

func newListCollector(target *[]string) *listCollector {
	return &listCollector{target: target}
}

func (l *listCollector) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("flag requires a value")
	}

	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		*l.target = append(*l.target, entry)
	}
	return nil
}

func (l *listCollector) String() string {
	if l == nil || l.target == nil {
		return ""
	}
	return strings.Join(*l.target, ",")
}

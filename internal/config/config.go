// Package config loads tcrun settings from a config file, the environment
// and command line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TCRUN_RUN_TIMEOUT.
const EnvPrefix = "TCRUN"

// DefaultFileNames are searched for in the working directory when no config
// path is given.
var DefaultFileNames = []string{"tcrun.yaml", "tcrun.yml", "tcrun.json"}

// Config is the complete tcrun configuration.
type Config struct {
	// WorkDir is the root below which per-test work areas are created.
	WorkDir string        `mapstructure:"workdir"`
	Tests   TestsConfig   `mapstructure:"tests"`
	Run     RunConfig     `mapstructure:"run"`
	Build   BuildConfig   `mapstructure:"build"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Report  ReportConfig  `mapstructure:"report"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type TestsConfig struct {
	Dir      string `mapstructure:"dir"`
	Input    string `mapstructure:"input"`
	Expected string `mapstructure:"expected"`
}

type RunConfig struct {
	Command    string        `mapstructure:"command"`
	Args       []string      `mapstructure:"args"`
	Env        []string      `mapstructure:"env"`
	Artifact   string        `mapstructure:"artifact"`
	InputName  string        `mapstructure:"input_name"`
	OutputName string        `mapstructure:"output_name"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Workers    int           `mapstructure:"workers"`
}

type BuildConfig struct {
	Source      string        `mapstructure:"source"`
	SourceName  string        `mapstructure:"source_name"`
	IgnoreMatch []string      `mapstructure:"ignore_match"`
	Command     string        `mapstructure:"command"`
	Args        []string      `mapstructure:"args"`
	Env         []string      `mapstructure:"env"`
	Dir         string        `mapstructure:"dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a build step is configured.
func (b BuildConfig) Enabled() bool {
	return b.Source != ""
}

type RuntimeConfig struct {
	Kind      string        `mapstructure:"kind"`
	KillGrace time.Duration `mapstructure:"kill_grace"`
	Docker    DockerConfig  `mapstructure:"docker"`
}

type DockerConfig struct {
	Image    string `mapstructure:"image"`
	Workdir  string `mapstructure:"workdir"`
	User     string `mapstructure:"user"`
	Network  string `mapstructure:"network"`
	SkipPull bool   `mapstructure:"skip_pull"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
	Color  string `mapstructure:"color"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// Enabled reports whether results should be published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	RuntimeProcess = "process"
	RuntimeDocker  = "docker"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("workdir", filepath.Join(".tcrun", "work"))

	v.SetDefault("tests.dir", "tests")
	v.SetDefault("tests.input", "*.in")
	v.SetDefault("tests.expected", "*.out")

	v.SetDefault("run.command", "")
	v.SetDefault("run.args", []string{})
	v.SetDefault("run.env", []string{})
	v.SetDefault("run.artifact", "")
	v.SetDefault("run.input_name", "input.in")
	v.SetDefault("run.output_name", "input.out")
	v.SetDefault("run.timeout", time.Second)
	v.SetDefault("run.workers", 0)

	v.SetDefault("build.source", "")
	v.SetDefault("build.source_name", "")
	v.SetDefault("build.ignore_match", []string{})
	v.SetDefault("build.command", "")
	v.SetDefault("build.args", []string{})
	v.SetDefault("build.env", []string{})
	v.SetDefault("build.dir", filepath.Join(".tcrun", "build"))
	v.SetDefault("build.timeout", 60*time.Second)

	v.SetDefault("runtime.kind", RuntimeProcess)
	v.SetDefault("runtime.kill_grace", 2*time.Second)
	v.SetDefault("runtime.docker.image", "")
	v.SetDefault("runtime.docker.workdir", "/workspace")
	v.SetDefault("runtime.docker.user", "")
	v.SetDefault("runtime.docker.network", "none")
	v.SetDefault("runtime.docker.skip_pull", false)

	v.SetDefault("report.format", "text")
	v.SetDefault("report.color", "auto")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
	v.SetDefault("kafka.group_id", "tcrun-watch")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Loader reads a Config. Flags bound with BindFlag override file and
// environment values when they were set on the command line.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader with defaults and environment overrides applied.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlag binds key to a command line flag.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads path, or the first of DefaultFileNames present in the working
// directory when path is empty, and returns the validated configuration.
func (l *Loader) Load(path string) (Config, error) {
	file, err := resolveFile(path)
	if err != nil {
		return Config{}, err
	}
	if file != "" {
		if err := l.readFile(file); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook,
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	cfg.Kafka.Brokers = cleanList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) readFile(file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(file), ".json") {
		format = "json"
	}
	if err := validateDocument(raw, format); err != nil {
		return fmt.Errorf("validate config %s: %w", file, err)
	}
	l.v.SetConfigType(format)
	if err := l.v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("parse config %s: %w", file, err)
	}
	return nil
}

func resolveFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}
	for _, name := range DefaultFileNames {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.WorkDir == "" {
		errs = append(errs, errors.New("workdir must be set"))
	}
	if c.Tests.Dir == "" {
		errs = append(errs, errors.New("tests.dir must be set"))
	}
	if c.Run.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("run.timeout must be positive, got %s", c.Run.Timeout))
	}
	if c.Build.Timeout < 0 || c.Runtime.KillGrace < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Run.Workers < 0 {
		errs = append(errs, fmt.Errorf("run.workers must not be negative, got %d", c.Run.Workers))
	}
	if c.Build.Enabled() {
		if c.Build.Command == "" {
			errs = append(errs, errors.New("build.command must be set when build.source is set"))
		}
		if c.Run.Artifact == "" {
			errs = append(errs, errors.New("run.artifact must name the build output when build.source is set"))
		}
	}
	switch c.Runtime.Kind {
	case RuntimeProcess:
	case RuntimeDocker:
		if c.Runtime.Docker.Image == "" {
			errs = append(errs, errors.New("runtime.docker.image must be set for the docker runtime"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown runtime.kind %q", c.Runtime.Kind))
	}
	if (len(c.Kafka.Brokers) > 0) != (c.Kafka.Topic != "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic must be set together"))
	}
	switch c.Report.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("unknown report.color %q", c.Report.Color))
	}
	return errors.Join(errs...)
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook decodes durations from Go duration strings ("50ms") or bare
// integers, which count milliseconds.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	return ParseDuration(data)
}

// ParseDuration accepts a time.Duration, an integer number of milliseconds,
// or a string holding either form.
func ParseDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("duration %v must be a whole number of milliseconds", v)
		}
		return time.Duration(v) * time.Millisecond, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v (%T)", value, value)
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

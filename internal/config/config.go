package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/formation"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultOutputDir      = "output"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > config file > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	RowSize           int
	Capacity          int
	StrictMinCapacity int
	Groups            []parade.Group
	Alpha             float64
	Beta              float64
	FixNumContingents int
	TimeLimit         time.Duration
	Solver            string

	ColumnWidth int
	Positions   map[int]int
	OutputDir   string
}

// Params returns the allocation parameters described by the configuration.
func (c Config) Params() allocation.Params {
	return allocation.Params{
		Capacity:          c.Capacity,
		RowSize:           c.RowSize,
		StrictMinCapacity: c.StrictMinCapacity,
		Alpha:             c.Alpha,
		Beta:              c.Beta,
		FixNumContingents: c.FixNumContingents,
		TimeLimit:         c.TimeLimit,
	}
}

// fileConfig represents the YAML or TOML configuration file structure.
// Pointer fields distinguish "absent" from an explicit zero.
type fileConfig struct {
	Port                 string        `yaml:"port" toml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period" toml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout" toml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout" toml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging" toml:"enable_request_logging"`
	RateLimit            fileRateLimit `yaml:"rate_limit" toml:"rate_limit"`

	ContingentRowSize *int     `yaml:"contingent_row_size" toml:"contingent_row_size"`
	Capacity          *int     `yaml:"capacity" toml:"capacity"`
	StrictMinCapacity *int     `yaml:"strict_min_capacity" toml:"strict_min_capacity"`
	Alpha             *float64 `yaml:"alpha" toml:"alpha"`
	Beta              *float64 `yaml:"beta" toml:"beta"`
	FixNumContingents *int     `yaml:"fix_num_contingents" toml:"fix_num_contingents"`
	TimeLimit         *float64 `yaml:"time_limit" toml:"time_limit"`
	Solver            string   `yaml:"solver" toml:"solver"`
	ColumnWidth       *int     `yaml:"column_width" toml:"column_width"`
	Positions         string   `yaml:"positions" toml:"positions"`
	OutputDir         string   `yaml:"output_dir" toml:"output_dir"`

	Groups     groupList            `yaml:"groups" toml:"-"`
	TOMLGroups map[string]groupSpec `yaml:"-" toml:"groups"`
}

// fileRateLimit represents the rate limit section.
type fileRateLimit struct {
	RPS   *float64 `yaml:"rps" toml:"rps"`
	Burst *int     `yaml:"burst" toml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int

	Capacity    *int
	RowSize     *int
	TimeLimit   *float64
	Solver      *string
	GroupsStr   *string
	Positions   *string
	ColumnWidth *int
	OutputDir   *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > config file > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		fileCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("%w: load config file: %w", parade.ErrConfiguration, err)
		}
		if err := applyFileConfig(&cfg, fileCfg); err != nil {
			return Config{}, err
		}
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,

		RowSize:   allocation.DefaultRowSize,
		Capacity:  allocation.DefaultCapacity,
		Alpha:     allocation.DefaultAlpha,
		Beta:      allocation.DefaultBeta,
		TimeLimit: allocation.DefaultTimeLimit,
		Solver:    allocation.BackendSimplex,

		ColumnWidth: formation.DefaultColumnWidth,
		OutputDir:   defaultOutputDir,
	}
}

// loadFromFile loads configuration from a YAML or, for *.toml paths, TOML file.
func loadFromFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &fileCfg)
		if err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
		fileCfg.Groups = orderedTOMLGroups(md, fileCfg.TOMLGroups)
		return &fileCfg, nil
	}

	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &fileCfg, nil
}

// applyFileConfig applies file configuration to the Config struct.
func applyFileConfig(cfg *Config, fileCfg *fileConfig) error {
	if fileCfg.Port != "" {
		cfg.Port = fileCfg.Port
	}

	durations := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"shutdown_grace_period", fileCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", fileCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", fileCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", fileCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", parade.ErrConfiguration, d.name, err)
		}
		*d.target = value
	}

	if fileCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *fileCfg.EnableRequestLogging
	}
	setIf(&cfg.RateLimitRPS, fileCfg.RateLimit.RPS)
	setIf(&cfg.RateLimitBurst, fileCfg.RateLimit.Burst)

	setIf(&cfg.RowSize, fileCfg.ContingentRowSize)
	setIf(&cfg.Capacity, fileCfg.Capacity)
	setIf(&cfg.StrictMinCapacity, fileCfg.StrictMinCapacity)
	setIf(&cfg.Alpha, fileCfg.Alpha)
	setIf(&cfg.Beta, fileCfg.Beta)
	setIf(&cfg.FixNumContingents, fileCfg.FixNumContingents)
	setIf(&cfg.ColumnWidth, fileCfg.ColumnWidth)
	if fileCfg.TimeLimit != nil {
		cfg.TimeLimit = seconds(*fileCfg.TimeLimit)
	}
	if fileCfg.Solver != "" {
		cfg.Solver = fileCfg.Solver
	}
	if fileCfg.OutputDir != "" {
		cfg.OutputDir = fileCfg.OutputDir
	}
	if fileCfg.Positions != "" {
		positions, err := formation.ParsePositions(fileCfg.Positions)
		if err != nil {
			return err
		}
		cfg.Positions = positions
	}
	if len(fileCfg.Groups) > 0 {
		cfg.Groups = fileCfg.Groups
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	ints := map[string]*int{
		"PARADE_CAPACITY": &cfg.Capacity,
		"PARADE_ROW_SIZE": &cfg.RowSize,
	}
	for name, target := range ints {
		raw := strings.TrimSpace(os.Getenv(name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: invalid integer %q", parade.ErrConfiguration, name, raw)
		}
		*target = value
	}

	if raw := strings.TrimSpace(os.Getenv("PARADE_TIME_LIMIT")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: PARADE_TIME_LIMIT: invalid number %q", parade.ErrConfiguration, raw)
		}
		cfg.TimeLimit = seconds(value)
	}

	if solver := strings.TrimSpace(os.Getenv("PARADE_SOLVER")); solver != "" {
		cfg.Solver = solver
	}

	if raw := strings.TrimSpace(os.Getenv("PARADE_GROUPS")); raw != "" {
		groups, err := parseGroups(raw)
		if err != nil {
			return fmt.Errorf("%w: PARADE_GROUPS: %v", parade.ErrConfiguration, err)
		}
		cfg.Groups = groups
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	setIf(&cfg.Capacity, overrides.Capacity)
	setIf(&cfg.RowSize, overrides.RowSize)
	setIf(&cfg.ColumnWidth, overrides.ColumnWidth)
	if overrides.TimeLimit != nil {
		cfg.TimeLimit = seconds(*overrides.TimeLimit)
	}
	if overrides.Solver != nil && *overrides.Solver != "" {
		cfg.Solver = *overrides.Solver
	}
	if overrides.OutputDir != nil && *overrides.OutputDir != "" {
		cfg.OutputDir = *overrides.OutputDir
	}

	if overrides.GroupsStr != nil && *overrides.GroupsStr != "" {
		groups, err := parseGroups(*overrides.GroupsStr)
		if err != nil {
			return fmt.Errorf("%w: parse groups: %v", parade.ErrConfiguration, err)
		}
		cfg.Groups = groups
	}

	if overrides.Positions != nil && *overrides.Positions != "" {
		positions, err := formation.ParsePositions(*overrides.Positions)
		if err != nil {
			return err
		}
		cfg.Positions = positions
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_RPS must be >= 0", parade.ErrConfiguration)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_BURST must be >= 0", parade.ErrConfiguration)
	}
	if cfg.TimeLimit <= 0 {
		return fmt.Errorf("%w: time limit must be positive", parade.ErrConfiguration)
	}
	if err := cfg.Params().Validate(); err != nil {
		return err
	}
	if !slices.Contains(allocation.Backends(), strings.ToLower(cfg.Solver)) {
		return fmt.Errorf("%w: unknown solver %q (want one of %s)",
			parade.ErrConfiguration, cfg.Solver, strings.Join(allocation.Backends(), ", "))
	}
	if cfg.ColumnWidth <= 0 {
		return fmt.Errorf("%w: column width must be positive, got %d", parade.ErrConfiguration, cfg.ColumnWidth)
	}
	if len(cfg.Groups) > 0 {
		if err := allocation.ValidateGroups(cfg.Groups); err != nil {
			return err
		}
	}
	return nil
}

// parseGroups parses a comma-separated list of "name:size" entries. A
// trailing ":avoid" marks the group as one that must not be split.
func parseGroups(raw string) ([]parade.Group, error) {
	parts := strings.Split(raw, ",")
	groups := make([]parade.Group, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("invalid group %q, want name:size[:avoid]", part)
		}
		name := strings.TrimSpace(fields[0])
		size, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid size in %q", part)
		}
		if size < 0 {
			return nil, fmt.Errorf("group size must not be negative, got %d", size)
		}
		g := parade.Group{Name: name, Size: size}
		if len(fields) == 3 {
			if strings.TrimSpace(fields[2]) != "avoid" {
				return nil, fmt.Errorf("invalid flag in %q, want avoid", part)
			}
			g.AvoidSplit = true
		}
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no groups provided")
	}
	return groups, nil
}

func setIf[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

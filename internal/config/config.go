// Package config provides configuration management for the asset pipeline
// using Viper for loading from files, environment variables and command-line
// flags.
//
// The configuration file is .assetpipe.yml. Environment variables override it
// with the ASSETPIPE_ prefix. Configuration declares the package roots, the
// asset sets, aliases, dependencies, explicit combinations and combination
// policies, and the server and development settings.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete pipeline configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Assets      AssetsConfig      `mapstructure:"assets" yaml:"assets" json:"assets"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Gzip        bool   `mapstructure:"gzip" yaml:"gzip" json:"gzip"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path" json:"metrics_path"`
}

// PackageConfig is a package root contributing assets. Override packages win
// over plain packages but lose to the application.
type PackageConfig struct {
	Name     string `mapstructure:"name" yaml:"name" json:"name"`
	Path     string `mapstructure:"path" yaml:"path" json:"path"`
	Override bool   `mapstructure:"override" yaml:"override" json:"override"`
}

// SetConfig is a named, ordered asset set.
type SetConfig struct {
	Name    string   `mapstructure:"name" yaml:"name" json:"name"`
	Members []string `mapstructure:"members" yaml:"members" json:"members"`
}

// AliasConfig maps an alias to an asset or set name.
type AliasConfig struct {
	Name   string `mapstructure:"name" yaml:"name" json:"name"`
	Target string `mapstructure:"target" yaml:"target" json:"target"`
}

// DependencyConfig declares that Name requires every entry in Requires.
type DependencyConfig struct {
	Name     string   `mapstructure:"name" yaml:"name" json:"name"`
	Requires []string `mapstructure:"requires" yaml:"requires" json:"requires"`
}

// CombinationConfig is an explicit combination of files.
type CombinationConfig struct {
	Name  string   `mapstructure:"name" yaml:"name" json:"name"`
	Files []string `mapstructure:"files" yaml:"files" json:"files"`
}

type AssetsConfig struct {
	Root         string              `mapstructure:"root" yaml:"root" json:"root"`
	RootedFolder string              `mapstructure:"rooted_folder" yaml:"rooted_folder" json:"rooted_folder"`
	Packages     []PackageConfig     `mapstructure:"packages" yaml:"packages" json:"packages"`
	Sets         []SetConfig         `mapstructure:"sets" yaml:"sets" json:"sets"`
	Aliases      []AliasConfig       `mapstructure:"aliases" yaml:"aliases" json:"aliases"`
	Dependencies []DependencyConfig  `mapstructure:"dependencies" yaml:"dependencies" json:"dependencies"`
	Combinations []CombinationConfig `mapstructure:"combinations" yaml:"combinations" json:"combinations"`
	Policies     []string            `mapstructure:"policies" yaml:"policies" json:"policies"`
	OrderFirst   []string            `mapstructure:"order_first" yaml:"order_first" json:"order_first"`
	Javascript   []string            `mapstructure:"javascript_extensions" yaml:"javascript_extensions" json:"javascript_extensions"`
	Stylesheet   []string            `mapstructure:"stylesheet_extensions" yaml:"stylesheet_extensions" json:"stylesheet_extensions"`
	Minify       bool                `mapstructure:"minify" yaml:"minify" json:"minify"`
	MaxAge       time.Duration       `mapstructure:"max_age" yaml:"max_age" json:"max_age"`
	CacheSizeMB  int                 `mapstructure:"cache_size_mb" yaml:"cache_size_mb" json:"cache_size_mb"`
	Exclude      []string            `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ManifestName string              `mapstructure:"manifest" yaml:"manifest" json:"manifest"`
	Headers      []HeaderConfig      `mapstructure:"headers" yaml:"headers" json:"headers"`
}

// HeaderConfig is a header added to every cacheable response.
type HeaderConfig struct {
	Name  string `mapstructure:"name" yaml:"name" json:"name"`
	Value string `mapstructure:"value" yaml:"value" json:"value"`
}

type DevelopmentConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Watch    bool          `mapstructure:"watch" yaml:"watch" json:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Defaults.
const (
	DefaultPort         = 8080
	DefaultHost         = "localhost"
	DefaultRoot         = "."
	DefaultRootedFolder = "content"
	DefaultManifest     = "assets.yml"
	DefaultMetricsPath  = "/metrics"
	DefaultMaxAge       = 24 * time.Hour
	DefaultCacheSizeMB  = 64
	DefaultDebounce     = 100 * time.Millisecond
)

// Load builds the configuration from the global viper instance.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if !viper.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !viper.IsSet("server.gzip") {
		config.Server.Gzip = true
	}
	if config.Server.MetricsPath == "" {
		config.Server.MetricsPath = DefaultMetricsPath
	}

	if config.Assets.Root == "" {
		config.Assets.Root = DefaultRoot
	}
	if config.Assets.RootedFolder == "" {
		config.Assets.RootedFolder = DefaultRootedFolder
	}
	if config.Assets.ManifestName == "" {
		config.Assets.ManifestName = DefaultManifest
	}
	if !viper.IsSet("assets.max_age") {
		config.Assets.MaxAge = DefaultMaxAge
	}
	if config.Assets.CacheSizeMB == 0 {
		config.Assets.CacheSizeMB = DefaultCacheSizeMB
	}
	if len(config.Assets.Exclude) == 0 {
		config.Assets.Exclude = []string{"node_modules", ".git"}
	}

	// Slices set directly on viper are not always decoded.
	if viper.IsSet("assets.policies") && len(config.Assets.Policies) == 0 {
		config.Assets.Policies = viper.GetStringSlice("assets.policies")
	}
	if viper.IsSet("assets.order_first") && len(config.Assets.OrderFirst) == 0 {
		config.Assets.OrderFirst = viper.GetStringSlice("assets.order_first")
	}

	if config.Development.Debounce <= 0 {
		config.Development.Debounce = DefaultDebounce
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateAssetsConfig(&config.Assets); err != nil {
		return fmt.Errorf("assets config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 asks the system for a port.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	if !strings.HasPrefix(config.MetricsPath, "/") {
		return fmt.Errorf("metrics_path must start with '/': %s", config.MetricsPath)
	}

	return nil
}

func validateAssetsConfig(config *AssetsConfig) error {
	if err := validatePath(config.Root); err != nil {
		return fmt.Errorf("invalid root '%s': %w", config.Root, err)
	}
	if strings.ContainsAny(config.RootedFolder, `/\`) {
		return fmt.Errorf("rooted_folder must be a single folder name: %s", config.RootedFolder)
	}

	names := make(map[string]bool)
	for _, pkg := range config.Packages {
		if pkg.Name == "" {
			return fmt.Errorf("package with path '%s' has no name", pkg.Path)
		}
		if names[pkg.Name] {
			return fmt.Errorf("duplicate package name: %s", pkg.Name)
		}
		names[pkg.Name] = true
		if err := validatePath(pkg.Path); err != nil {
			return fmt.Errorf("invalid path for package '%s': %w", pkg.Name, err)
		}
	}

	for _, set := range config.Sets {
		if set.Name == "" {
			return fmt.Errorf("set without a name")
		}
	}
	for _, alias := range config.Aliases {
		if alias.Name == "" || alias.Target == "" {
			return fmt.Errorf("alias needs both name and target: %q -> %q", alias.Name, alias.Target)
		}
	}
	for _, dep := range config.Dependencies {
		if dep.Name == "" {
			return fmt.Errorf("dependency without a name")
		}
	}
	for _, combo := range config.Combinations {
		if combo.Name == "" {
			return fmt.Errorf("combination without a name")
		}
		if len(combo.Files) < 2 {
			return fmt.Errorf("combination '%s' needs at least two files", combo.Name)
		}
	}

	if config.MaxAge < 0 {
		return fmt.Errorf("max_age must not be negative: %s", config.MaxAge)
	}
	if config.CacheSizeMB < 0 {
		return fmt.Errorf("cache_size_mb must not be negative: %d", config.CacheSizeMB)
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	switch strings.ToLower(config.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", config.Format)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

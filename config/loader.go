package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/pipekit/logger"
)

// FileSystem abstracts the file probing the loader does, so tests can
// run against a fake tree.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	Getwd() (string, error)
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

func (rfs *RealFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

// Resolver locates config and env files for a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths when the options carry them,
// otherwise probes the standard locations.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}

	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.findConfigFile(serviceName)
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.findEnvFile(serviceName)
	}

	return resolved
}

// serviceAliases returns the names a service may appear under on disk:
// the full name plus the last dash-separated segment ("market-feed"
// also matches cmd/feed).
func serviceAliases(serviceName string) []string {
	if idx := strings.LastIndex(serviceName, "-"); idx != -1 {
		return []string{serviceName, serviceName[idx+1:]}
	}
	return []string{serviceName}
}

// findConfigFile probes for config.yml near the binary and the repo root.
// Tests and tools often run a directory or two below the root, hence the
// parent-relative probes.
func (cr *Resolver) findConfigFile(serviceName string) string {
	var paths []string
	for _, depth := range []string{".", "..", "../.."} {
		for _, name := range serviceAliases(serviceName) {
			paths = append(paths, fmt.Sprintf("%s/cmd/%s/config.yml", depth, name))
		}
	}
	paths = append(paths,
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	)

	for _, path := range paths {
		if cr.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// findEnvFile probes for .env.<service> first, then a plain .env, in the
// same locations as findConfigFile plus config/<service>/.
func (cr *Resolver) findEnvFile(serviceName string) string {
	var dirs []string
	for _, depth := range []string{".", "..", "../.."} {
		for _, name := range serviceAliases(serviceName) {
			dirs = append(dirs, fmt.Sprintf("%s/cmd/%s", depth, name))
			dirs = append(dirs, fmt.Sprintf("%s/config/%s", depth, name))
		}
		dirs = append(dirs, depth+"/config", depth)
	}

	for _, envFile := range []string{".env." + serviceName, ".env"} {
		for _, dir := range dirs {
			full := dir + "/" + envFile
			if cr.FileSystem.Exists(full) {
				return full
			}
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadConfig loads configuration for a service into the provided cfg
// struct. Precedence, lowest to highest: config.yml, process environment,
// .env file. Missing files are not errors; an empty tree unmarshals to
// zero values for ApplyDefaults to fill.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	return loadFromResolvedFiles(serviceName, cfg, files, lc.FileSystem)
}

func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, fs FileSystem) error {
	v := viper.New()
	log := logger.GetGlobalLogger().WithComponent("config")

	if files.ConfigFile != "" && fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("Skipping unreadable config file", logger.Fields(
				"file", files.ConfigFile, logger.FieldError, err.Error()))
		}
	}

	v.AutomaticEnv()
	bindEnvironment(v)

	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			log.Warn("Skipping unreadable .env file", logger.Fields(
				"file", files.EnvFile, logger.FieldError, err.Error()))
		} else {
			// Pick up the variables the .env file just added.
			bindEnvironment(v)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	return nil
}

// bindEnvironment sets every process environment variable on v under each
// nested-key spelling it could correspond to, so flat env names reach
// nested config sections.
func bindEnvironment(v *viper.Viper) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants maps an UPPER_SNAKE env name onto the viper keys it may
// address. KAFKA_DIAL_TIMEOUT can mean kafka.dial_timeout (a section with
// a flat field) or kafka.dial.timeout (fully nested), and the loader has
// no schema to decide, so it sets all splits and lets Unmarshal match.
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	seen := make(map[string]bool, len(parts)+2)
	var variants []string
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	add(lower)
	add(strings.ReplaceAll(lower, "_", "."))
	// Every "dotted prefix + flat remainder" split.
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
	}

	return variants
}

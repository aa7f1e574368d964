// Package config loads project configuration: the database dialect, its
// connection string, and the filesystem paths the migration lifecycle
// reads and writes (spec.md §6 "Configured paths", §10). An optional
// sqlbuns.toml project file is decoded with github.com/BurntSushi/toml,
// the same library the teacher uses for its declarative schema format
// (internal/parser/toml). github.com/spf13/viper then layers environment
// variables over the decoded values, so DATABASE_ENGINE and friends always
// win over the file, the pattern untoldecay-BeadsLog's internal/config
// uses for its own TOML-backed config.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"sql-buns-migrate/internal/dialect"
)

// FileName is the project config file's fixed name, looked up in the
// current working directory.
const FileName = "sqlbuns.toml"

// DefaultModelsPath and DefaultMigrationsDir are spec.md §6's fallbacks
// when no project file overrides them.
const (
	DefaultModelsPath    = "database/models"
	DefaultMigrationsDir = "database/migrations"
)

// projectFile is sqlbuns.toml's shape. Every field is optional; config.Load
// applies the same-named defaults above when absent.
type projectFile struct {
	Database struct {
		Engine string `toml:"engine"`
		DSN    string `toml:"dsn"`
	} `toml:"database"`
	Paths struct {
		ModelsPath    string `toml:"models_path"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"paths"`
	Interactive bool `toml:"interactive"`
}

// Config is the resolved project configuration the CLI and internal/migrate
// build everything else from.
type Config struct {
	Engine        dialect.Type
	DSN           string
	ModelsPath    string
	MigrationsDir string
	// Interactive enables the rename-confirmation prompt (spec.md §6
	// "rename oracle"); false uses rename.NonInteractive.
	Interactive bool
}

// Load reads sqlbuns.toml from dir if present, then layers
// DATABASE_ENGINE/DATABASE_DSN/SQLBUNS_* environment variables over it via
// viper's automatic env binding. dir is normally the process's working
// directory; tests pass a temp directory.
func Load(dir string) (*Config, error) {
	var pf projectFile
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &pf); err != nil {
			return nil, &InvalidConfigError{Path: path, Reason: err.Error()}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("SQLBUNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.engine", pf.Database.Engine)
	v.SetDefault("database.dsn", pf.Database.DSN)
	v.SetDefault("paths.models_path", firstNonEmpty(pf.Paths.ModelsPath, DefaultModelsPath))
	v.SetDefault("paths.migrations_dir", firstNonEmpty(pf.Paths.MigrationsDir, DefaultMigrationsDir))
	v.SetDefault("interactive", pf.Interactive)

	// DATABASE_ENGINE and DATABASE_DSN are spec.md §6's unprefixed names
	// (the engine is consumed directly by the external pool, not by this
	// tool's own env namespace), bound explicitly alongside the SQLBUNS_
	// prefix viper applies automatically to the rest.
	_ = v.BindEnv("database.engine", "DATABASE_ENGINE")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN")

	engine := strings.ToLower(strings.TrimSpace(v.GetString("database.engine")))
	if engine == "" {
		return nil, &dialect.UnsupportedDialectError{Requested: ""}
	}
	d := dialect.Type(engine)
	if _, err := dialect.GetDialect(d); err != nil {
		return nil, err
	}

	return &Config{
		Engine:        d,
		DSN:           v.GetString("database.dsn"),
		ModelsPath:    v.GetString("paths.models_path"),
		MigrationsDir: v.GetString("paths.migrations_dir"),
		Interactive:   v.GetBool("interactive"),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// InvalidConfigError is raised when sqlbuns.toml exists but fails to
// decode.
type InvalidConfigError struct {
	Path   string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return "config: " + e.Path + ": " + e.Reason
}

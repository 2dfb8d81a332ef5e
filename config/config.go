/*
	Loading the configuration of an update-generator run.

	Config is everything that is the project operator's concern: which
	paths a package leaves out, where archives land, how git is driven.
	It is built once (defaults, then a config file, then UPDGEN_*
	environment overrides) and handed down to every component; nothing
	below the command line reads the environment on its own.
*/
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/yaml.v3"

	"github.com/Maheshkerai/update-generator"
)

//go:embed schema.json
var schemaDoc []byte

type Config struct {
	ProjectRoot     string            `json:"project_root"`
	OutputDirectory string            `json:"output_directory"` // relative paths are under ProjectRoot
	TempDirectory   string            `json:"temp_directory"`   // os.TempDir() when empty
	ExcludeUpdate   []string          `json:"exclude_update"`
	ExcludeNew      []string          `json:"exclude_new"`
	AddUpdateFile   []string          `json:"add_update_file"`
	ManifestFiles   []string          `json:"manifest_files"`
	GitTimeout      int               `json:"git_timeout"` // seconds
	EnableLogging   bool              `json:"enable_logging"`
	SanitizeEnabled bool              `json:"sanitize_enabled"`
	SanitizeEnv     map[string]string `json:"sanitize_env"`
	EnvFile         string            `json:"env_file"`
	MetadataFormat  string            `json:"metadata_format"`
	RevisionBackend string            `json:"revision_backend"`
	GitBinary       string            `json:"git_binary"`
	Install         Install           `json:"install"`
	Lock            Lock              `json:"lock"`
	MetricsTextfile string            `json:"metrics_textfile"`
}

type Install struct {
	Directories []string `json:"directories"`
	Files       []string `json:"files"`
}

type Lock struct {
	Mode     string `json:"mode"`
	RedisURL string `json:"redis_url"`
	TTL      int    `json:"ttl"` // seconds
}

const (
	Backend_Exec   = "exec"
	Backend_Native = "native"
)

// Default returns the stock configuration.
func Default() Config {
	return Config{
		ProjectRoot:     ".",
		OutputDirectory: "storage/app/update_files",
		ExcludeUpdate: []string{
			"storage", "vendor", ".env", "node_modules", ".git", ".idea",
			"composer.lock", "package-lock.json", "yarn.lock",
			"public/storage", "public/uploads", "tests", "phpunit.xml",
			".gitignore", ".env.example", "README.md", "CHANGELOG.md",
		},
		ExcludeNew: []string{
			"storage", "vendor", "node_modules", ".git", ".idea",
			"composer.lock", "package-lock.json", "yarn.lock",
			"public/storage", "public/uploads", "tests", "phpunit.xml",
			".gitignore", ".env.example", "README.md", "CHANGELOG.md",
		},
		AddUpdateFile: []string{
			"vendor/autoload.php",
			"vendor/mahesh-kerai",
			"vendor/composer",
		},
		ManifestFiles:   []string{"composer.json"},
		GitTimeout:      300,
		EnableLogging:   true,
		SanitizeEnabled: true,
		SanitizeEnv: map[string]string{
			"APP_DEBUG":             "false",
			"APP_SECRET":            "",
			"APP_KEY":               "",
			"DB_PASSWORD":           "",
			"MAIL_PASSWORD":         "",
			"AWS_SECRET_ACCESS_KEY": "",
			"PUSHER_APP_SECRET":     "",
			"JWT_SECRET":            "",
			"OAUTH_CLIENT_SECRET":   "",
		},
		EnvFile:         ".env",
		MetadataFormat:  "php",
		RevisionBackend: Backend_Exec,
		GitBinary:       "git",
		Install: Install{
			Directories: []string{
				"app", "bootstrap", "config", "database", "lang", "public",
				"resources", "routes", "storage", "vendor", "tests",
			},
			Files: []string{
				".env", ".env.example", ".editorconfig", ".gitattributes", ".gitignore",
				"artisan", "composer.json", "composer.lock", "package.json", "package-lock.json",
				"phpunit.xml", "README.md", "webpack.mix.js", "vite.config.js",
			},
		},
		Lock: Lock{
			Mode: "file",
			TTL:  1800,
		},
	}
}

/*
	Load reads the config file at path over the defaults, then applies
	environment overrides.  An empty path means defaults plus environment.

	The format follows the extension: ".yaml"/".yml", ".toml", or ".json".
	Keys present in the file replace the default wholesale (a file listing
	`exclude_update` gets exactly that list, `sanitize_env` exactly that map).

	Errors are ErrConfig.
*/
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return cfg, Errorf(updategen.ErrConfig, "cannot read config %s: %s", path, err)
		}
		if err := cfg.overlay(path, body); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) overlay(path string, body []byte) error {
	var doc map[string]interface{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return Errorf(updategen.ErrConfig, "cannot parse %s: %s", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(body, &doc); err != nil {
			return Errorf(updategen.ErrConfig, "cannot parse %s: %s", path, err)
		}
	case ".json":
		if err := json.Unmarshal(body, &doc); err != nil {
			return Errorf(updategen.ErrConfig, "cannot parse %s: %s", path, err)
		}
	default:
		return Errorf(updategen.ErrConfig, "unknown config format %q for %s", ext, path)
	}
	if doc == nil {
		return nil // an empty file is all defaults
	}

	// Every format goes through its JSON form: that is what the schema
	// speaks, and what the struct tags describe.
	canonical, err := json.Marshal(doc)
	if err != nil {
		return Errorf(updategen.ErrConfig, "config %s has values with no JSON form: %s", path, err)
	}
	if err := validateSchema(canonical); err != nil {
		return Errorf(updategen.ErrConfig, "config %s is invalid: %s", path, err)
	}
	if _, ok := doc["sanitize_env"]; ok {
		cfg.SanitizeEnv = nil
	}
	if err := json.Unmarshal(canonical, cfg); err != nil {
		return Errorf(updategen.ErrConfig, "cannot apply config %s: %s", path, err)
	}
	return nil
}

func validateSchema(canonical []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("inmemory://update-generator.json", bytes.NewReader(schemaDoc)); err != nil {
		return err
	}
	schema, err := compiler.Compile("inmemory://update-generator.json")
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(canonical, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// Validate checks invariants a hand-built Config could break.
func (cfg Config) Validate() error {
	switch {
	case cfg.ProjectRoot == "":
		return Errorf(updategen.ErrConfig, "project_root must be set")
	case cfg.OutputDirectory == "":
		return Errorf(updategen.ErrConfig, "output_directory must be set")
	case cfg.GitTimeout <= 0:
		return Errorf(updategen.ErrConfig, "git_timeout must be positive, got %d", cfg.GitTimeout)
	}
	switch cfg.MetadataFormat {
	case "php", "json":
	default:
		return Errorf(updategen.ErrConfig, "metadata_format must be php or json, got %q", cfg.MetadataFormat)
	}
	switch cfg.RevisionBackend {
	case Backend_Exec, Backend_Native:
	default:
		return Errorf(updategen.ErrConfig, "revision_backend must be exec or native, got %q", cfg.RevisionBackend)
	}
	switch cfg.Lock.Mode {
	case "none", "file", "redis":
	default:
		return Errorf(updategen.ErrConfig, "lock.mode must be none, file, or redis, got %q", cfg.Lock.Mode)
	}
	return nil
}

// ProjectPath returns ProjectRoot made absolute.
func (cfg Config) ProjectPath() (string, error) {
	p, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return "", Errorf(updategen.ErrConfig, "cannot resolve project_root %q: %s", cfg.ProjectRoot, err)
	}
	return p, nil
}

// OutputPath returns OutputDirectory made absolute, relative ones
// being taken from the project root.
func (cfg Config) OutputPath() (string, error) {
	if filepath.IsAbs(cfg.OutputDirectory) {
		return filepath.Clean(cfg.OutputDirectory), nil
	}
	root, err := cfg.ProjectPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, cfg.OutputDirectory), nil
}

// TempPath is where installation staging goes: outside the project tree.
func (cfg Config) TempPath() string {
	if cfg.TempDirectory == "" {
		return os.TempDir()
	}
	return cfg.TempDirectory
}

func (cfg Config) GitTimeoutDuration() time.Duration {
	return time.Duration(cfg.GitTimeout) * time.Second
}

func (cfg Config) LockTTL() time.Duration {
	return time.Duration(cfg.Lock.TTL) * time.Second
}

package config

import (
	"strconv"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
)

/*
	Environment overrides, applied after the config file:

	  - `UPDGEN_PROJECT_ROOT` replaces project_root;
	  - `UPDGEN_OUTPUT_DIR` replaces output_directory;
	  - `UPDGEN_TEMP_DIR` replaces temp_directory;
	  - `UPDGEN_GIT_TIMEOUT` replaces git_timeout (seconds);
	  - `UPDGEN_LOGGING` replaces enable_logging ("true", "0", ...);
	  - `UPDGEN_LOCK_MODE` and `UPDGEN_REDIS_URL` replace the lock settings.

	Unset and empty variables change nothing.
*/
func (cfg *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("UPDGEN_PROJECT_ROOT", &cfg.ProjectRoot)
	str("UPDGEN_OUTPUT_DIR", &cfg.OutputDirectory)
	str("UPDGEN_TEMP_DIR", &cfg.TempDirectory)
	str("UPDGEN_LOCK_MODE", &cfg.Lock.Mode)
	str("UPDGEN_REDIS_URL", &cfg.Lock.RedisURL)

	if v := strings.TrimSpace(getenv("UPDGEN_GIT_TIMEOUT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Errorf(updategen.ErrConfig, "UPDGEN_GIT_TIMEOUT must be a number of seconds, got %q", v)
		}
		cfg.GitTimeout = n
	}
	if v := strings.TrimSpace(getenv("UPDGEN_LOGGING")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Errorf(updategen.ErrConfig, "UPDGEN_LOGGING must be a boolean, got %q", v)
		}
		cfg.EnableLogging = b
	}
	return nil
}

package session

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/matheus3301/zpw/internal/config"
)

const DefaultSessionName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a directory and socket component.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 of [a-z0-9_-]", name)
	}
	return nil
}

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. ZPW_SESSION, from the environment or ~/.zpw/.env
// 3. config.toml default_session
// 4. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	// Load never overrides variables that are already set.
	_ = godotenv.Load(EnvPath())
	if name := os.Getenv("ZPW_SESSION"); name != "" {
		return name
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}

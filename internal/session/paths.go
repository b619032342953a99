package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.zpw, or $ZPW_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("ZPW_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zpw")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// CredentialsPath returns the credentials file for a session.
func CredentialsPath(name string) string {
	return filepath.Join(Dir(name), "credentials.toml")
}

// AppDBPath returns the app-owned zpw.db path.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "zpw.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "zpwd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnvPath returns the optional dotenv file read during session resolution.
func EnvPath() string {
	return filepath.Join(BaseDir(), ".env")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// List returns the names of all session directories.
func List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(BaseDir(), "sessions"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

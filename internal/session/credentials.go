package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/zpw/internal/zpw"
)

// Credentials is the login material for one session. It is written by
// `zpwctl login` and read by the daemon at startup.
type Credentials struct {
	SecretKey  string         `toml:"secret_key"`
	IMEI       string         `toml:"imei"`
	UID        string         `toml:"uid"`
	Cookie     string         `toml:"cookie"`
	ServiceMap zpw.ServiceMap `toml:"service_map"`
}

// ErrNoCredentials is returned when the session has never been logged in.
var ErrNoCredentials = errors.New("no credentials for session")

// Validate reports the first missing required field.
func (c *Credentials) Validate() error {
	switch {
	case c.SecretKey == "":
		return errors.New("credentials: secret_key is required")
	case c.IMEI == "":
		return errors.New("credentials: imei is required")
	case len(c.ServiceMap.Chat) == 0 && len(c.ServiceMap.Group) == 0:
		return errors.New("credentials: service_map needs at least one chat or group host")
	}
	return nil
}

// SessionContext extracts what the API client needs from the credentials.
func (c *Credentials) SessionContext() zpw.SessionContext {
	return zpw.SessionContext{SecretKey: c.SecretKey, IMEI: c.IMEI}
}

// LoadCredentials reads the credentials file at path.
func LoadCredentials(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveCredentials writes creds to path with owner-only permissions.
func SaveCredentials(path string, creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(creds)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/zpw/internal/zpw"
)

func validCredentials() *Credentials {
	return &Credentials{
		SecretKey: "MDEyMzQ1Njc4OWFiY2RlZg==",
		IMEI:      "imei-1",
		Cookie:    "zpsid=abc",
		ServiceMap: zpw.ServiceMap{
			Chat:  []string{"https://chat.example"},
			Group: []string{"https://group.example"},
		},
	}
}

func TestCredentialsSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s", "credentials.toml")
	if err := SaveCredentials(path, validCredentials()); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials perm = %o, want 0600", info.Mode().Perm())
	}

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if creds.IMEI != "imei-1" || creds.Cookie != "zpsid=abc" {
		t.Errorf("creds = %+v", creds)
	}
	if len(creds.ServiceMap.Group) != 1 || creds.ServiceMap.Group[0] != "https://group.example" {
		t.Errorf("service map = %+v", creds.ServiceMap)
	}
	sc := creds.SessionContext()
	if sc.SecretKey != creds.SecretKey || sc.IMEI != "imei-1" {
		t.Errorf("SessionContext() = %+v", sc)
	}
}

func TestLoadCredentialsMissing(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "credentials.toml"))
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("error = %v, want ErrNoCredentials", err)
	}
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Credentials)
	}{
		{"no secret key", func(c *Credentials) { c.SecretKey = "" }},
		{"no imei", func(c *Credentials) { c.IMEI = "" }},
		{"no services", func(c *Credentials) { c.ServiceMap = zpw.ServiceMap{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCredentials()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
			if err := SaveCredentials(filepath.Join(t.TempDir(), "c.toml"), c); err == nil {
				t.Error("SaveCredentials() should refuse invalid credentials")
			}
		})
	}
}

package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/zpw/internal/client"
	"github.com/matheus3301/zpw/internal/config"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/session"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/zpw"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))

// shortHome points ZPW_HOME at a short /tmp path so socket paths stay under
// the 104-char Unix socket limit on macOS.
func shortHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "zpw-")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("ZPW_HOME", dir)
	return dir
}

// fakeService answers every request with an encrypted {"status":1} envelope
// and counts hits.
func fakeService(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("params") == "" {
			http.Error(w, "missing params", http.StatusBadRequest)
			return
		}
		inner, err := zpw.AESCBC{}.Encrypt(testKey, `{"error_code":0,"error_message":"","data":{"status":1}}`)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error_code": 0, "error_message": "", "data": inner})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeCredentials(t *testing.T, sessionName, host string) {
	t.Helper()
	err := session.SaveCredentials(session.CredentialsPath(sessionName), &session.Credentials{
		SecretKey:  testKey,
		IMEI:       "imei-1",
		UID:        "42",
		ServiceMap: zpw.ServiceMap{Chat: []string{host}, Group: []string{host}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func startApp(t *testing.T, sessionName string) *client.Client {
	t.Helper()
	app := fx.New(Module(Params{SessionName: sessionName}), fx.NopLogger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	})

	c, err := client.New(session.SocketPath(sessionName))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{SessionName: "fxtest"})); err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}

func TestNewServerHonoursSocketOverride(t *testing.T) {
	home := shortHome(t)
	socketPath := filepath.Join(home, "d.sock")

	srv, err := NewServer(Params{SessionName: "fxtest", SocketPath: socketPath}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permission = %o, want 0600", perm)
	}
	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket not removed on Stop")
	}
}

// TestDaemonWithoutCredentials starts a fresh session: the daemon must settle
// in CREDENTIALS_REQUIRED and keep queued undos until credentials arrive.
func TestDaemonWithoutCredentials(t *testing.T) {
	shortHome(t)
	svc, hits := fakeService(t)
	c := startApp(t, "main")
	ctx := context.Background()

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != string(status.CredentialsRequired) {
		t.Fatalf("state = %s, want CREDENTIALS_REQUIRED", st.State)
	}

	if _, err := c.TrackMessage(ctx, &store.Message{ThreadID: "7", Kind: message.KindDirect, GlobalMsgID: "999", CliMsgID: "5"}); err != nil {
		t.Fatal(err)
	}
	id, err := c.QueueUndo(ctx, "999")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(700 * time.Millisecond)
	if hits.Load() != 0 {
		t.Fatal("undo dispatched without credentials")
	}

	writeCredentials(t, "main", svc.URL)
	st, err = c.ReloadCredentials(ctx)
	if err != nil {
		t.Fatalf("ReloadCredentials() error = %v", err)
	}
	if st.State != string(status.Ready) {
		t.Fatalf("state after reload = %s, want READY", st.State)
	}

	waitFor(t, "queued undo to complete", func() bool {
		req, err := c.GetUndo(ctx, id)
		return err == nil && req.Status == store.UndoDone
	})
	waitFor(t, "message marked undone", func() bool {
		msgs, err := c.ListMessages(ctx, "7", 10)
		return err == nil && len(msgs) == 1 && msgs[0].Status == store.StatusUndone
	})
}

func TestDaemonSynchronousUndo(t *testing.T) {
	shortHome(t)
	svc, hits := fakeService(t)
	writeCredentials(t, "main", svc.URL)

	if err := config.Save(session.ConfigPath(), &config.Config{
		API: config.APIConfig{Version: 665, Type: 30, TimeoutSeconds: 5},
	}); err != nil {
		t.Fatal(err)
	}

	c := startApp(t, "main")
	ctx := context.Background()

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != string(status.Ready) {
		t.Fatalf("state = %s, want READY", st.State)
	}

	if _, err := c.TrackMessage(ctx, &store.Message{ThreadID: "g1", Kind: message.KindGroup, GlobalMsgID: "1", CliMsgID: "2"}); err != nil {
		t.Fatal(err)
	}
	res, err := c.Undo(ctx, "1")
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if res.Status != 1 {
		t.Errorf("status = %d, want 1", res.Status)
	}
	if hits.Load() != 1 {
		t.Errorf("service hit %d times, want 1", hits.Load())
	}
	waitFor(t, "message marked undone", func() bool {
		msgs, err := c.ListMessages(ctx, "g1", 10)
		return err == nil && len(msgs) == 1 && msgs[0].Status == store.StatusUndone
	})
}

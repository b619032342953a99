package daemon

import (
	"context"
	"sync"

	"github.com/matheus3301/zpw/internal/config"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/session"
	"github.com/matheus3301/zpw/internal/status"
	"github.com/matheus3301/zpw/internal/zpw"
	"go.uber.org/zap"
)

// SessionUndoer routes undo calls to the API client built from the session's
// current credentials. Reload swaps the client and moves the state machine.
type SessionUndoer struct {
	sessionName string
	cfg         *config.Config
	machine     *status.Machine
	logger      *zap.Logger

	reloadMu sync.Mutex

	mu     sync.RWMutex
	client *zpw.Client
}

// NewSessionUndoer creates an undoer with no client; call Reload to load one.
func NewSessionUndoer(p Params, cfg *config.Config, machine *status.Machine, logger *zap.Logger) *SessionUndoer {
	return &SessionUndoer{
		sessionName: p.SessionName,
		cfg:         cfg,
		machine:     machine,
		logger:      logger,
	}
}

func (u *SessionUndoer) Undo(ctx context.Context, msg message.Message) (*zpw.UndoResponse, error) {
	u.mu.RLock()
	c := u.client
	u.mu.RUnlock()
	if c == nil {
		return nil, &zpw.PreconditionError{Reason: "session has no credentials"}
	}
	return c.Undo(ctx, msg)
}

// Reload reads credentials.toml. Valid credentials make the session READY;
// anything else drops the client and leaves it CREDENTIALS_REQUIRED. A session
// that cannot become READY (ERROR, STOPPING) keeps no client.
func (u *SessionUndoer) Reload() error {
	u.reloadMu.Lock()
	defer u.reloadMu.Unlock()

	creds, err := session.LoadCredentials(session.CredentialsPath(u.sessionName))
	if err != nil {
		u.setClient(nil)
		if u.machine.Current() != status.CredentialsRequired {
			if terr := u.machine.Transition(status.CredentialsRequired); terr != nil {
				u.logger.Warn("state transition failed", zap.Error(terr))
			}
		}
		return err
	}

	u.setClient(NewAPIClient(creds, u.cfg, u.logger))
	if !u.machine.IsReady() {
		if err := u.machine.Transition(status.Ready); err != nil {
			u.setClient(nil)
			return err
		}
	}
	u.logger.Info("credentials loaded", zap.String("uid", creds.UID), zap.Strings("chat_hosts", creds.ServiceMap.Chat), zap.Strings("group_hosts", creds.ServiceMap.Group))
	return nil
}

func (u *SessionUndoer) setClient(c *zpw.Client) {
	u.mu.Lock()
	u.client = c
	u.mu.Unlock()
}

// NewAPIClient assembles the undo client: AES-CBC codec, HTTP transport and
// the envelope resolver, tuned by the [api] config section.
func NewAPIClient(creds *session.Credentials, cfg *config.Config, logger *zap.Logger) *zpw.Client {
	codec := zpw.AESCBC{}
	transport := zpw.NewHTTPTransport(zpw.TransportOptions{
		UserAgent: cfg.API.UserAgent,
		Language:  cfg.API.Language,
		Cookie:    creds.Cookie,
		Timeout:   cfg.API.Timeout(),
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	}, logger)
	opts := []zpw.Option{zpw.WithLogger(logger)}
	if cfg.API.Version > 0 && cfg.API.Type > 0 {
		opts = append(opts, zpw.WithAPIVersion(cfg.API.Version, cfg.API.Type))
	}
	return zpw.New(
		creds.SessionContext(),
		creds.ServiceMap,
		codec,
		transport,
		zpw.NewEnvelopeResolver(creds.SecretKey, codec),
		opts...,
	)
}

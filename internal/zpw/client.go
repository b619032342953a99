package zpw

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAPIVersion = 665
	DefaultAPIType    = 30
)

// SessionContext is the per-login state needed to encrypt and attribute requests.
type SessionContext struct {
	SecretKey string
	IMEI      string
}

// Client binds a session to the collaborators every remote procedure goes
// through. It keeps no per-call state and is safe for concurrent use.
type Client struct {
	session   SessionContext
	endpoints EndpointResolver
	crypto    Encryptor
	transport Transport
	resolver  ResponseResolver

	apiVersion int
	apiType    int
	now        func() time.Time
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithAPIVersion sets the zpw_ver and zpw_type query parameters.
func WithAPIVersion(version, apiType int) Option {
	return func(c *Client) {
		c.apiVersion = version
		c.apiType = apiType
	}
}

// WithClock replaces the wall clock used for clientId.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client from explicit collaborators.
func New(session SessionContext, endpoints EndpointResolver, crypto Encryptor, transport Transport, resolver ResponseResolver, opts ...Option) *Client {
	c := &Client{
		session:    session,
		endpoints:  endpoints,
		crypto:     crypto,
		transport:  transport,
		resolver:   resolver,
		apiVersion: DefaultAPIVersion,
		apiType:    DefaultAPIType,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call serializes params, encrypts them, posts them as the "params" form field
// and resolves the reply into out. Transport and resolver errors are returned
// as they are.
func (c *Client) call(ctx context.Context, endpoint string, params any, out any) error {
	plain, err := json.Marshal(params)
	if err != nil {
		return err
	}
	encrypted, err := c.crypto.Encrypt(c.session.SecretKey, string(plain))
	if err != nil {
		return &EncryptionError{Err: err}
	}
	if encrypted == "" {
		return &EncryptionError{}
	}

	resp, err := c.transport.Post(ctx, endpoint, url.Values{"params": {encrypted}})
	if err != nil {
		return err
	}
	return c.resolver.Resolve(resp, out)
}

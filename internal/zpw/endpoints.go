package zpw

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/matheus3301/zpw/internal/message"
)

// EndpointResolver maps a message kind to the base URL of the service that
// handles it.
type EndpointResolver interface {
	BaseURL(kind message.Kind) (string, error)
}

// ServiceMap lists the service hosts handed out at login. Only the first entry
// of each list is used.
type ServiceMap struct {
	Chat  []string `toml:"chat"`
	Group []string `toml:"group"`
}

func (m ServiceMap) BaseURL(kind message.Kind) (string, error) {
	var hosts []string
	switch kind {
	case message.KindDirect:
		hosts = m.Chat
	case message.KindGroup:
		hosts = m.Group
	default:
		return "", fmt.Errorf("no service for message kind %s", kind)
	}
	if len(hosts) == 0 || hosts[0] == "" {
		return "", fmt.Errorf("service map has no %s endpoint", kind)
	}
	return hosts[0], nil
}

// makeURL joins base and path and stamps the API version and type unless the
// base already carries them.
func (c *Client) makeURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	if !q.Has("zpw_ver") {
		q.Set("zpw_ver", strconv.Itoa(c.apiVersion))
	}
	if !q.Has("zpw_type") {
		q.Set("zpw_type", strconv.Itoa(c.apiType))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

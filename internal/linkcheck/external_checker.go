package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/utils"
	"go.uber.org/zap"
)

const maxBodyDrain = 1 << 20

// errMalformedURL marks links that cannot be turned into a request URI.
var errMalformedURL = errors.New("malformed url")

// ExternalChecker issues HEAD (falling back to GET) requests through a pooled
// HTTP client shared by every validation of the process.
type ExternalChecker struct {
	client    atomic.Pointer[http.Client]
	userAgent atomic.Value // string
	logger    *zap.Logger
}

// NewExternalChecker builds the checker and its connection pool from cfg.
func NewExternalChecker(cfg config.ExternalConfig, logger *zap.Logger) *ExternalChecker {
	c := &ExternalChecker{logger: logger}
	c.Configure(cfg)
	return c
}

// NewExternalCheckerWithClient uses client as is. Configure replaces it.
func NewExternalCheckerWithClient(client *http.Client, userAgent string, logger *zap.Logger) *ExternalChecker {
	c := &ExternalChecker{logger: logger}
	c.client.Store(client)
	c.userAgent.Store(userAgent)
	return c
}

// Configure rebuilds the pooled client. In-flight requests keep using the old
// client; its idle connections are closed.
func (c *ExternalChecker) Configure(cfg config.ExternalConfig) {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectionTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxTotal,
		MaxConnsPerHost:       cfg.MaxPerRoute,
		MaxIdleConnsPerHost:   cfg.MaxPerRoute,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectionTimeout,
		ResponseHeaderTimeout: cfg.SocketTimeout,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.ConnectionTimeout + cfg.SocketTimeout,
	}

	old := c.client.Swap(client)
	c.userAgent.Store(cfg.UserAgent)
	if old != nil {
		old.CloseIdleConnections()
	}
	c.logger.Debug("external link client configured",
		zap.Duration("connection_timeout", cfg.ConnectionTimeout),
		zap.Duration("socket_timeout", cfg.SocketTimeout),
		zap.Int("max_total", cfg.MaxTotal),
		zap.Int("max_per_route", cfg.MaxPerRoute),
	)
}

// Close releases idle pooled connections.
func (c *ExternalChecker) Close() {
	if client := c.client.Load(); client != nil {
		client.CloseIdleConnections()
	}
}

// CheckLink returns the HTTP status code of link. A HEAD request is sent first;
// anything but 200 is retried once with GET since some servers reject HEAD.
// Transport failures are returned as errors.
func (c *ExternalChecker) CheckLink(ctx context.Context, link string) (int, error) {
	u, err := url.ParseRequestURI(utils.AbsoluteHTTPURL(link))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformedURL, err)
	}
	if u.Host == "" {
		return 0, fmt.Errorf("%w: no host in %q", errMalformedURL, link)
	}

	code, err := c.do(ctx, http.MethodHead, u)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK {
		return c.do(ctx, http.MethodGet, u)
	}
	return code, nil
}

func (c *ExternalChecker) do(ctx context.Context, method string, u *url.URL) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformedURL, err)
	}
	if ua, _ := c.userAgent.Load().(string); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Load().Do(req)
	if err != nil {
		return 0, err
	}
	if resp == nil {
		c.logger.Error("no response from server", zap.String("url", u.String()))
		return http.StatusBadRequest, nil
	}
	defer resp.Body.Close()

	// Drain so the connection goes back to the pool.
	_, _ = io.CopyN(io.Discard, resp.Body, maxBodyDrain)
	return resp.StatusCode, nil
}

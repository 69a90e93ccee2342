package panel

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/twtctl/internal/metrics"
	"github.com/edvin/twtctl/internal/session"
)

const (
	loginPath   = "/login.php"
	listingPath = "/interface/loggedSts.php"
	formType    = "application/x-www-form-urlencoded"
)

// ErrCookieExpired means the panel rejected the session cookie.
var ErrCookieExpired = errors.New("cookie has expired")

// SessionStore persists the session cookie between runs.
type SessionStore interface {
	Load() (string, error)
	Save(cookie string) error
	Invalidate() error
}

// Config describes the panel web interface.
type Config struct {
	BaseURL  string
	Username string
	Password string
	// TLS overrides the transport's TLS settings. The panel host has not
	// presented a verifiable chain, so callers usually pass a config with
	// InsecureSkipVerify set; that accepts any certificate.
	TLS *tls.Config
	// PageDelay is the pause between page fetches of a domain lookup.
	PageDelay time.Duration
	Timeout   time.Duration
}

// Client fetches pages of the panel web interface using a session cookie.
type Client struct {
	cfg        Config
	httpClient *http.Client
	store      SessionStore
	cookie     string
	logger     zerolog.Logger
	metrics    *metrics.Recorder
}

func NewClient(cfg Config, store SessionStore, logger zerolog.Logger, rec *metrics.Recorder) *Client {
	logger = logger.With().Str("component", "panel").Logger()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLS != nil {
		if cfg.TLS.InsecureSkipVerify {
			logger.Warn().Str("host", cfg.BaseURL).Msg("TLS certificate verification disabled for panel host; any certificate is accepted")
		}
		transport.TLSClientConfig = cfg.TLS
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			// Redirects are inspected, not followed: the panel redirects
			// expired sessions to its login page.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		store:   store,
		logger:  logger,
		metrics: rec,
	}
}

// ensureSession loads the stored cookie, logging in when there is none.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.cookie != "" {
		return nil
	}
	cookie, err := c.store.Load()
	switch {
	case err == nil:
		c.cookie = cookie
		return nil
	case !errors.Is(err, session.ErrNoSession):
		return fmt.Errorf("load session: %w", err)
	}
	return c.login(ctx)
}

// login posts the credentials and stores the returned Set-Cookie values.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("passwd", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	req.Header.Set("Content-Type", formType)

	c.metrics.Login()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("login: status %d", resp.StatusCode)
	}
	setCookies := resp.Header.Values("Set-Cookie")
	if len(setCookies) == 0 {
		return fmt.Errorf("login: no session cookie in response (status %d)", resp.StatusCode)
	}

	raw := strings.Join(setCookies, "\n")
	if err := c.store.Save(raw); err != nil {
		return err
	}
	c.cookie = raw
	c.logger.Info().Msg("logged in to panel")
	return nil
}

// fetch requests one listing page. The panel serves listings on POST
// without a body.
func (c *Client) fetch(ctx context.Context, query url.Values) (*Page, error) {
	u := c.cfg.BaseURL + listingPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("page request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Cookie", cookieHeader(c.cookie))

	c.metrics.PageFetch(query.Get("c"))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %s: %w", query.Get("c"), query.Get("p"), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s page %s: %w", query.Get("c"), query.Get("p"), err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrCookieExpired
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if strings.Contains(strings.ToLower(resp.Header.Get("Location")), "login") {
			return nil, ErrCookieExpired
		}
		return nil, fmt.Errorf("fetch %s page %s: unexpected redirect to %q", query.Get("c"), query.Get("p"), resp.Header.Get("Location"))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("fetch %s page %s: status %d", query.Get("c"), query.Get("p"), resp.StatusCode)
	}

	page, err := ParsePage(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if page.IsLoginForm() {
		return nil, ErrCookieExpired
	}
	return page, nil
}

// cookieHeader turns the stored Set-Cookie lines into a Cookie header value.
// Lines that do not parse are sent unchanged.
func cookieHeader(raw string) string {
	var pairs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ck, err := http.ParseSetCookie(line); err == nil {
			pairs = append(pairs, ck.Name+"="+ck.Value)
			continue
		}
		pairs = append(pairs, line)
	}
	return strings.Join(pairs, "; ")
}

// withSession runs scan with a valid session. If the panel rejects the
// cookie, the stored cookie is dropped and scan runs once more from the
// start after a fresh login. A second rejection is returned.
func (c *Client) withSession(ctx context.Context, scan func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		if err := c.ensureSession(ctx); err != nil {
			return err
		}
		err := scan(ctx)
		if !errors.Is(err, ErrCookieExpired) {
			return err
		}
		if attempt > 0 {
			return fmt.Errorf("session rejected after fresh login: %w", err)
		}

		c.logger.Info().Msg("session cookie expired, logging in again")
		c.metrics.SessionRetry()
		c.cookie = ""
		if err := c.store.Invalidate(); err != nil {
			return err
		}
	}
}

package decktutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Client is a DeckTutor webservice client. It is safe for concurrent use;
// signed requests draw their sequence numbers under a lock.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
	names      *lru.Cache[string, []string]

	mu      sync.Mutex
	game    Game
	session *Session
}

// NewClient creates a new DeckTutor client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return NewClientWithHTTPClient(config, &http.Client{
		Timeout: config.Timeout,
	})
}

// NewClientWithHTTPClient creates a new DeckTutor client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Game == "" {
		config.Game = DefaultGame
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		log:        zerolog.Nop(),
		game:       config.Game,
	}
	if config.Logger != nil {
		c.log = *config.Logger
	}
	if config.NameCacheSize > 0 {
		// only fails for a non-positive size
		c.names, _ = lru.New[string, []string](config.NameCacheSize)
	}
	return c
}

// Endpoint returns the base URL requests are sent to
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.config.Endpoint, "/")
}

// Game returns the active game
func (c *Client) Game() Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game
}

// SetGame changes the game searches run against
func (c *Client) SetGame(g Game) error {
	if !g.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownGame, g)
	}
	c.mu.Lock()
	c.game = g
	c.mu.Unlock()
	return nil
}

// Session returns a copy of the current session, nil when logged out
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// RestoreSession installs a session obtained earlier, e.g. loaded from disk.
// A nil session logs the client out locally.
func (c *Client) RestoreSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil || s.Token == "" {
		c.session = nil
		return
	}
	cp := *s
	c.session = &cp
}

// query holds GET parameters; nil and empty string values are not sent
type query map[string]any

func (q query) encode() string {
	values := url.Values{}
	for k, v := range q {
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		values.Set(k, s)
	}
	return values.Encode()
}

// do performs a request on the webservice. For GET, data must be a query and
// is appended to the URL; for other methods a non-nil data is sent as JSON.
// The answer is decoded into result unless result is nil or the body is empty.
func (c *Client) do(ctx context.Context, method, path string, data any, result any) error {
	return c.send(ctx, method, path, data, result, true)
}

// send is do with signing optional
func (c *Client) send(ctx context.Context, method, path string, data any, result any, signed bool) error {
	target := c.Endpoint() + path

	var body io.Reader
	if method == http.MethodGet {
		if q, ok := data.(query); ok {
			if encoded := q.encode(); encoded != "" {
				target += "?" + encoded
			}
		}
	} else if data != nil {
		bodyBytes, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("method", method).Str("url", target).Msg("request")

	c.mu.Lock()
	if signed && c.session != nil {
		seq := c.session.sign(req.Header)
		c.mu.Unlock()
		c.log.Debug().Int64("sequence", seq).Msg("adding auth headers")
	} else {
		c.mu.Unlock()
		c.log.Debug().Msg("proceeding without authentication")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.log.Debug().Int("status", resp.StatusCode).Str("code", apiErr.Code).Msg("request failed")
		return apiErr
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// CreateCaptcha creates a new captcha for human validation
func (c *Client) CreateCaptcha(ctx context.Context) (*Captcha, error) {
	var captcha Captcha
	if err := c.do(ctx, http.MethodPost, "/sys/createCaptha", nil, &captcha); err != nil {
		return nil, err
	}
	return &captcha, nil
}

// Login requests an authorization token and starts signing requests with it
func (c *Client) Login(ctx context.Context, login, password string) (*User, error) {
	req := &LoginRequest{
		Login:    login,
		Password: password,
	}

	// login goes out unsigned; a stale token would get it refused
	var resp LoginResult
	if err := c.send(ctx, http.MethodPost, "/account/login", req, &resp, false); err != nil {
		return nil, err
	}
	if resp.AuthToken == "" {
		return nil, ErrMissingToken
	}

	c.mu.Lock()
	c.session = &Session{
		Token:      resp.AuthToken,
		Secret:     resp.AuthTokenSecret,
		Sequence:   1,
		Expiration: resp.AuthTokenExpiration.Time,
	}
	c.mu.Unlock()

	c.log.Debug().Time("expiration", resp.AuthTokenExpiration.Time).Msg("logged in")
	return resp.User, nil
}

// Logout revokes the session on the service and forgets it locally. A
// session the service no longer knows counts as logged out.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/account/login", nil, nil); err != nil && !IsSessionRejected(err) {
		return err
	}
	c.RestoreSession(nil)
	return nil
}

// GetLogin retrieves the nickname of the logged in user, "" if not logged
func (c *Client) GetLogin(ctx context.Context) (string, error) {
	var login *string
	if err := c.do(ctx, http.MethodGet, "/account/login", nil, &login); err != nil {
		return "", err
	}
	if login == nil {
		return "", nil
	}
	return *login, nil
}

func configPath(key string) string {
	return "/account/config/" + url.PathEscape(key)
}

// LoadConfig loads a configuration entry. A missing entry is JSON null.
func (c *Client) LoadConfig(ctx context.Context, key string) (json.RawMessage, error) {
	var value json.RawMessage
	if err := c.do(ctx, http.MethodGet, configPath(key), nil, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// LoadConfigInto loads a configuration entry and decodes it into v
func (c *Client) LoadConfigInto(ctx context.Context, key string, v any) error {
	return c.do(ctx, http.MethodGet, configPath(key), nil, v)
}

// StoreConfig stores a configuration value remotely; a nil value deletes the key
func (c *Client) StoreConfig(ctx context.Context, key string, value any) error {
	if value == nil {
		return c.DeleteConfig(ctx, key)
	}
	return c.do(ctx, http.MethodPut, configPath(key), value, nil)
}

// DeleteConfig removes a configuration entry
func (c *Client) DeleteConfig(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, configPath(key), nil, nil)
}

// Register creates a new account. captcha may be nil when the service does
// not require one.
func (c *Client) Register(ctx context.Context, reg *Registration, captcha *CaptchaAnswer) error {
	req := &RegisterRequest{Registration: *reg}
	if captcha != nil {
		req.CaptchaCode = captcha.Code
		req.CaptchaAnswer = captcha.Answer
	}
	return c.do(ctx, http.MethodPost, "/account/register", req, nil)
}

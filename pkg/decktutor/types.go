package decktutor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultEndpoint is the base URL of the DeckTutor webservice
const DefaultEndpoint = "http://dev.decktutor.com/ws-1.2/app/v1"

// Headers carrying the request signature
const (
	HeaderAuthToken = "x-dt-Auth-Token"
	HeaderSequence  = "x-dt-Sequence"
	HeaderSignature = "x-dt-Signature"
)

// Error codes returned by the DeckTutor webservice
const (
	ErrCodeUnexpected         = "UNEXPECTED_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotAuthorized      = "NOT_AUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidSignature   = "INVALID_SIGNATURE"
	ErrCodeInvalidSequence    = "INVALID_SEQUENCE"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeInvalidCaptcha     = "INVALID_CAPTCHA"
	ErrCodeNotFound           = "NOT_FOUND"
)

var (
	ErrMissingToken = errors.New("login response carries no auth token")
	ErrUnknownGame  = errors.New("unknown game")
	ErrInvalidOrder = errors.New("invalid order, expected column,dir")
)

// APIError represents an error response from the webservice
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("decktutor: HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// IsSessionRejected reports whether err is the service refusing the auth
// token itself: unknown, revoked or expired. The session is dead and only a
// new login helps.
func IsSessionRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return false
	}
	return apiErr.Code == ErrCodeNotAuthorized || apiErr.Code == ErrCodeSessionExpired
}

// newAPIError builds an APIError from a non-200 answer; bodies that are not a
// JSON error object still produce an error carrying the status.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.Status = status
	if apiErr.Code == "" {
		apiErr.Code = ErrCodeUnexpected
	}
	return apiErr
}

// User is the account returned by a successful login
type User struct {
	ID       string `json:"id"`
	Login    string `json:"login"`
	Email    string `json:"email,omitempty"`
	Language string `json:"language,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// LoginRequest is the request body for POST /account/login
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResult is the answer of POST /account/login
type LoginResult struct {
	AuthToken           string     `json:"auth_token"`
	AuthTokenExpiration Expiration `json:"auth_token_expiration"`
	AuthTokenSecret     string     `json:"auth_token_secret"`
	User                *User      `json:"user"`
}

// expirationLayouts are the string forms accepted for a token expiration
var expirationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Expiration is a token expiration as the service sends it: an RFC 3339 or
// "YYYY-MM-DD hh:mm:ss" string, or unix seconds. Anything else decodes to
// the zero time, which means unknown.
type Expiration struct {
	time.Time
}

func (e Expiration) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(e.UTC().Format(time.RFC3339Nano))
}

func (e *Expiration) UnmarshalJSON(data []byte) error {
	e.Time = time.Time{}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch v := v.(type) {
	case float64:
		if v > 0 {
			e.Time = time.Unix(int64(v), 0).UTC()
		}
	case string:
		for _, layout := range expirationLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				e.Time = t
				break
			}
		}
	}
	return nil
}

// Captcha is a human validation challenge. The service sends it as a two
// element array: [code, challenge].
type Captcha struct {
	Code      string
	Challenge string
}

func (c *Captcha) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("captcha: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("captcha: expected 2 elements, got %d", len(parts))
	}
	c.Code, c.Challenge = parts[0], parts[1]
	return nil
}

func (c Captcha) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Code, c.Challenge})
}

// CaptchaAnswer pairs a captcha code with the answer typed by the user
type CaptchaAnswer struct {
	Code   string
	Answer string
}

// Account holds the credentials part of a registration
type Account struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Person holds the personal data part of a registration
type Person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Address is a postal address
type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country"`
}

// Registration is everything POST /account/register needs except the captcha
type Registration struct {
	Privacy bool           `json:"privacy"`
	User    Account        `json:"user"`
	Person  Person         `json:"person"`
	Address Address        `json:"address"`
	Prefs   map[string]any `json:"prefs"`
}

// RegisterRequest is the request body for POST /account/register
type RegisterRequest struct {
	Registration
	CaptchaCode   string `json:"captcha_code,omitempty"`
	CaptchaAnswer string `json:"captcha_answer,omitempty"`
}

// CardVersion is one printing of a card
type CardVersion struct {
	ID       string `json:"id"`
	Game     Game   `json:"game"`
	Name     string `json:"name"`
	Set      string `json:"set"`
	SetName  string `json:"set_name"`
	Number   string `json:"number,omitempty"`
	Rarity   string `json:"rarity,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Listing is a card offered for sale, as returned by the SERP
type Listing struct {
	ID       string       `json:"id"`
	Card     CardVersion  `json:"card"`
	Seller   string       `json:"seller"`
	State    CardState    `json:"state"`
	Language CardLanguage `json:"language"`
	Foil     bool         `json:"foil"`
	Quantity int          `json:"quantity"`
	Price    int64        `json:"price"` // cents
	Currency string       `json:"currency"`
}

// Search are the SERP filters; zero fields do not filter
type Search struct {
	Game     Game         `json:"game,omitempty"`
	Name     string       `json:"name,omitempty"`
	Set      string       `json:"set,omitempty"`
	Language CardLanguage `json:"language,omitempty"`
	State    CardState    `json:"state,omitempty"`
	Foil     *bool        `json:"foil,omitempty"`
	MinPrice int64        `json:"min_price,omitempty"`
	MaxPrice int64        `json:"max_price,omitempty"`
}

// SerpRequest is the request body for POST /search/serp
type SerpRequest struct {
	Search *Search `json:"search"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit,omitempty"`
	Order  string  `json:"order,omitempty"`
}

// Order is a result ordering, sent on the wire as "column,dir"
type Order struct {
	Column     string
	Descending bool
}

func (o Order) String() string {
	if o.Column == "" {
		return ""
	}
	if o.Descending {
		return o.Column + ",desc"
	}
	return o.Column + ",asc"
}

// ParseOrder parses "column" or "column,asc|desc"
func ParseOrder(s string) (Order, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Order{}, nil
	}
	column, dir, _ := strings.Cut(s, ",")
	column = strings.TrimSpace(column)
	if column == "" {
		return Order{}, ErrInvalidOrder
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return Order{Column: column}, nil
	case "desc":
		return Order{Column: column, Descending: true}, nil
	default:
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidOrder, s)
	}
}

// ClientConfig holds the configuration for the DeckTutor client
type ClientConfig struct {
	Endpoint string
	Game     Game
	Timeout  time.Duration

	// NameCacheSize enables an LRU cache of card name lookups when > 0
	NameCacheSize int

	Logger *zerolog.Logger
}

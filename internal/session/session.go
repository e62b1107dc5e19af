package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/studiowebux/orderstress/internal/executor"
	"github.com/studiowebux/orderstress/internal/types"
)

// API paths of the order service
const (
	PathProducts = "/api/products"
	PathOrder    = "/api/order"
	PathOrders   = "/api/orders"
	PathSignup   = "/api/signup"
	PathLogin    = "/api/login"
	PathSession  = "/api/session"
	PathAccount  = "/api/account"
	PathLogout   = "/api/logout"
)

// StatusError is returned when an account endpoint answers with an unexpected status
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

// Client is the session opener: every call shares one cookie jar,
// so the session cookie set by sign-up or login is replayed on later requests
type Client struct {
	baseURL string
	http    *http.Client
	rest    *resty.Client
	user    *types.User
	log     zerolog.Logger
}

// NewClient wraps httpClient for the API at baseURL.
// A cookie jar is attached when httpClient has none.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("requires baseURL")
	}
	if httpClient == nil {
		var err error
		httpClient, err = executor.BuildHTTPClient(executor.ClientOptions{CookieJar: true})
		if err != nil {
			return nil, err
		}
	}
	if httpClient.Jar == nil {
		jar, err := executor.NewCookieJar()
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	rest := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		rest:    rest,
		log:     log.With().Str("baseURL", baseURL).Logger(),
	}, nil
}

// HTTPClient returns the underlying client; orders sent through it carry the session cookie
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// User returns the account bound to the session, if any
func (c *Client) User() *types.User {
	return c.user
}

// NewCredentials generates a unique throwaway account
func NewCredentials() types.Credentials {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	username := "stress_" + id[:12]
	return types.Credentials{
		Username: username,
		Email:    username + "@example.com",
		Password: uuid.NewString(),
	}
}

type userEnvelope struct {
	User *types.User `json:"user"`
}

type ordersEnvelope struct {
	Orders []types.StoredOrder `json:"orders"`
}

// SignUp creates the account; the server answers with a session cookie
func (c *Client) SignUp(ctx context.Context, creds types.Credentials) (*types.User, error) {
	var out userEnvelope
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&out).
		SetError(&types.APIError{}).
		Post(PathSignup)
	if err := checkResponse("signup", resp, err); err != nil {
		return nil, err
	}
	c.user = userOrFallback(out.User, creds)
	c.log.Debug().Str("username", c.user.Username).Msg("signed up")
	return c.user, nil
}

// Login opens a session for an existing account
func (c *Client) Login(ctx context.Context, creds types.Credentials) (*types.User, error) {
	var out userEnvelope
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": creds.Email, "password": creds.Password}).
		SetResult(&out).
		SetError(&types.APIError{}).
		Post(PathLogin)
	if err := checkResponse("login", resp, err); err != nil {
		return nil, err
	}
	c.user = userOrFallback(out.User, creds)
	c.log.Debug().Str("username", c.user.Username).Msg("logged in")
	return c.user, nil
}

// Current returns the user bound to the session cookie
func (c *Client) Current(ctx context.Context) (*types.User, error) {
	var out userEnvelope
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&types.APIError{}).
		Get(PathSession)
	if err := checkResponse("session", resp, err); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &StatusError{Op: "session", Status: resp.StatusCode(), Message: "no user bound to session"}
	}
	return out.User, nil
}

// Orders lists the orders stored for the signed-in account
func (c *Client) Orders(ctx context.Context) ([]types.StoredOrder, error) {
	var out ordersEnvelope
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&types.APIError{}).
		Get(PathOrders)
	if err := checkResponse("orders", resp, err); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// Products fetches the catalogue
func (c *Client) Products(ctx context.Context) ([]types.Product, error) {
	var out []types.Product
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&types.APIError{}).
		Get(PathProducts)
	if err := checkResponse("products", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAccount removes the signed-in account; the server answers 204
func (c *Client) DeleteAccount(ctx context.Context, password string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"password": password}).
		SetError(&types.APIError{}).
		Delete(PathAccount)
	if err := expectNoContent("delete account", resp, err); err != nil {
		return err
	}
	c.log.Debug().Msg("account deleted")
	c.user = nil
	return nil
}

// Logout ends the session; the server answers 204
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetError(&types.APIError{}).
		Post(PathLogout)
	if err := expectNoContent("logout", resp, err); err != nil {
		return err
	}
	c.user = nil
	return nil
}

// Bootstrap opens the session used by a run: sign up (or log in) and
// confirm the cookie is honoured by the session endpoint
func (c *Client) Bootstrap(ctx context.Context, creds types.Credentials, login bool) (*types.User, error) {
	var err error
	if login {
		_, err = c.Login(ctx, creds)
	} else {
		_, err = c.SignUp(ctx, creds)
	}
	if err != nil {
		return nil, err
	}

	user, err := c.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("session cookie not accepted: %w", err)
	}
	c.user = user
	return user, nil
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return statusError(op, resp)
	}
	return nil
}

func expectNoContent(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusError(op, resp)
	}
	return nil
}

func statusError(op string, resp *resty.Response) error {
	se := &StatusError{Op: op, Status: resp.StatusCode()}
	if apiErr, ok := resp.Error().(*types.APIError); ok && apiErr.Error != "" {
		se.Message = apiErr.Error
	} else {
		se.Message = strings.TrimSpace(resp.String())
	}
	return se
}

func userOrFallback(u *types.User, creds types.Credentials) *types.User {
	if u != nil {
		return u
	}
	return &types.User{Username: creds.Username, Email: creds.Email}
}

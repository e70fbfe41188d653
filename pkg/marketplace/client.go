package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rentalmarket/booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 30 * time.Second

	// Cached tokens are refreshed this long before they expire
	tokenRefreshLeeway = time.Minute

	// Used when neither expires_in nor an exp claim says otherwise
	fallbackTokenLifetime = 5 * time.Minute

	trustedScope     = "trusted:user"
	integrationScope = "integ"
)

// Client talks to the marketplace platform: the Marketplace API for user and trusted
// calls and the Integration API for profile updates
type Client struct {
	baseURL                 string
	clientID                string
	clientSecret            string
	integrationClientID     string
	integrationClientSecret string
	client                  *http.Client
	inspector               *jwt.Inspector
	logger                  *logrus.Logger

	// Integration token management
	token       string
	tokenMutex  sync.RWMutex
	tokenExpiry time.Time
	now         func() time.Time
}

// Config holds configuration for the marketplace client
type Config struct {
	BaseURL                 string
	ClientID                string
	ClientSecret            string
	IntegrationClientID     string
	IntegrationClientSecret string
	Timeout                 time.Duration
}

// NewClient creates a new marketplace client
func NewClient(config Config, logger *logrus.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		baseURL:                 strings.TrimRight(config.BaseURL, "/"),
		clientID:                config.ClientID,
		clientSecret:            config.ClientSecret,
		integrationClientID:     config.IntegrationClientID,
		integrationClientSecret: config.IntegrationClientSecret,
		client: &http.Client{
			Timeout: timeout,
		},
		inspector: jwt.NewInspector(tokenRefreshLeeway),
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// AUTHENTICATION
// ============================================================================

// ExchangeTrustedToken exchanges a user access token for a trusted user token, which
// is required for privileged transitions and line item pricing
func (c *Client) ExchangeTrustedToken(ctx context.Context, userToken string) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"token_exchange"},
		"scope":         {trustedScope},
		"subject_token": {userToken},
	}

	tokenResp, err := c.requestToken(ctx, form)
	if err != nil {
		return "", fmt.Errorf("failed to exchange trusted token: %w", err)
	}
	return tokenResp.AccessToken, nil
}

// GetIntegrationToken fetches a new integration token and caches it
func (c *Client) GetIntegrationToken(ctx context.Context) error {
	form := url.Values{
		"client_id":     {c.integrationClientID},
		"client_secret": {c.integrationClientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {integrationScope},
	}

	tokenResp, err := c.requestToken(ctx, form)
	if err != nil {
		return fmt.Errorf("failed to get integration token: %w", err)
	}

	expiry := c.now().Add(fallbackTokenLifetime)
	if tokenResp.ExpiresIn > 0 {
		expiry = c.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	} else if exp, err := c.inspector.GetTokenExpiry(tokenResp.AccessToken); err == nil {
		expiry = exp
	}

	// Store token with expiry
	c.tokenMutex.Lock()
	c.token = tokenResp.AccessToken
	c.tokenExpiry = expiry
	c.tokenMutex.Unlock()

	c.logger.WithFields(logrus.Fields{
		"expires_at": expiry,
	}).Debug("Integration token refreshed")

	return nil
}

// isTokenValid checks if the cached integration token is still usable
func (c *Client) isTokenValid() bool {
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()

	if c.token == "" {
		return false
	}

	return c.now().Before(c.tokenExpiry.Add(-tokenRefreshLeeway))
}

// ensureValidToken returns a valid integration token, refreshing it when needed
func (c *Client) ensureValidToken(ctx context.Context) (string, error) {
	if !c.isTokenValid() {
		if err := c.GetIntegrationToken(ctx); err != nil {
			return "", err
		}
	}

	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, nil
}

// invalidateToken drops the cached integration token
func (c *Client) invalidateToken() {
	c.tokenMutex.Lock()
	c.token = ""
	c.tokenMutex.Unlock()
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	endpoint := "/v1/auth/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.execute(req, endpoint)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Data, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access_token")
	}

	return &tokenResp, nil
}

// ============================================================================
// MARKETPLACE API
// ============================================================================

// CurrentUser fetches the user the token belongs to
func (c *Client) CurrentUser(ctx context.Context, userToken string) (*Response, error) {
	return c.doJSON(ctx, http.MethodGet, "/v1/api/current_user/show", userToken, nil, nil)
}

// ShowListing fetches a listing
func (c *Client) ShowListing(ctx context.Context, userToken, listingID string) (*Response, error) {
	query := url.Values{"id": {listingID}}
	return c.doJSON(ctx, http.MethodGet, "/v1/api/listings/show", userToken, query, nil)
}

// InitiateTransaction starts a transaction, or prices one without creating it when
// speculative is true
func (c *Client) InitiateTransaction(ctx context.Context, trustedToken string, body map[string]interface{}, queryParams map[string]interface{}, speculative bool) (*Response, error) {
	endpoint := "/v1/api/transactions/initiate"
	if speculative {
		endpoint = "/v1/api/transactions/initiate_speculative"
	}
	return c.doJSON(ctx, http.MethodPost, endpoint, trustedToken, EncodeQuery(queryParams), body)
}

// Transition requests a lifecycle transition of a transaction
func (c *Client) Transition(ctx context.Context, trustedToken, transactionID, transition string, params map[string]interface{}) (*Response, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	body := TransitionRequest{
		ID:         transactionID,
		Transition: transition,
		Params:     params,
	}
	query := url.Values{"expand": {"true"}}
	return c.doJSON(ctx, http.MethodPost, "/v1/api/transactions/transition", trustedToken, query, body)
}

// ============================================================================
// INTEGRATION API
// ============================================================================

// UpdateProfile patches the metadata of a user profile. Only the keys present in
// metadata are changed.
func (c *Client) UpdateProfile(ctx context.Context, userID string, metadata interface{}) (*Response, error) {
	body := UpdateProfileRequest{ID: userID, Metadata: metadata}
	query := url.Values{"expand": {"true"}}
	endpoint := "/v1/integration_api/users/update_profile"

	token, err := c.ensureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, token, query, body)

	// The cached integration token may have been revoked before its expiry; send the
	// same request once more with a fresh token. Any other rejection is returned as is.
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.invalidateToken()
		if token, err = c.ensureValidToken(ctx); err != nil {
			return nil, err
		}
		return c.doJSON(ctx, http.MethodPost, endpoint, token, query, body)
	}

	return resp, err
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, query url.Values, body interface{}) (*Response, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.execute(req, endpoint)
}

func (c *Client) execute(req *http.Request, endpoint string) (*Response, error) {
	start := c.now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	data := json.RawMessage(body)
	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		// Keep non-JSON bodies (gateway errors) as a JSON string
		data, _ = json.Marshal(string(body))
	}

	c.logger.WithFields(logrus.Fields{
		"method":      req.Method,
		"endpoint":    endpoint,
		"status":      resp.StatusCode,
		"duration_ms": c.now().Sub(start).Milliseconds(),
	}).Debug("Marketplace API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Data:       data,
			Endpoint:   endpoint,
		}
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Data:       data,
	}, nil
}

// EncodeQuery flattens SDK-style query params into a query string. Lists are joined
// with commas, the way the marketplace API expects include and fields params.
func EncodeQuery(params map[string]interface{}) url.Values {
	values := url.Values{}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
			continue
		case string:
			values.Set(k, v)
		case []string:
			values.Set(k, strings.Join(v, ","))
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			values.Set(k, strings.Join(parts, ","))
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}

	return values
}

// internal/falcon/client.go
package falcon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mssp-monitor/internal/config"
	"mssp-monitor/internal/model"
)

// Doer issues HTTP requests; satisfied by *http.Client. Tests inject a
// fake so no call leaves the process.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// regionBaseURLs maps the short region aliases used in config to API hosts.
var regionBaseURLs = map[string]string{
	"us-1":     "https://api.crowdstrike.com",
	"us-2":     "https://api.us-2.crowdstrike.com",
	"eu-1":     "https://api.eu-1.crowdstrike.com",
	"us-gov-1": "https://api.laggar.gcw.crowdstrike.com",
}

// deviceFilter selects endpoints seen within the trailing 7 days.
const deviceFilter = "last_seen:>'now-7d'"

// tokenRefreshMargin refreshes tokens this long before they expire.
const tokenRefreshMargin = 60 * time.Second

// ChildTenant is one entry from the child-tenant detail endpoint.
type ChildTenant struct {
	ChildCID string `json:"child_cid"`
	Name     string `json:"name"`
}

// Client talks to the CrowdStrike management plane. It owns OAuth2 token
// acquisition, including per-member-CID scoped tokens for child tenants,
// and is safe for concurrent use.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        Doer
	logger       *zap.Logger

	mu     sync.Mutex
	tokens map[string]accessToken // keyed by member CID, "" is the parent scope
	now    func() time.Time
}

type accessToken struct {
	value     string
	expiresAt time.Time
}

// NewClient builds a client for the configured region. BaseRegion may also
// be a full http(s) URL, which tests use to point at a local server.
func NewClient(cfg config.FalconConfig, httpc Doer, logger *zap.Logger) (*Client, error) {
	base := cfg.BaseRegion
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		mapped, ok := regionBaseURLs[base]
		if !ok {
			return nil, fmt.Errorf("unknown falcon region %q", base)
		}
		base = mapped
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(base, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpc:        httpc,
		logger:       logger,
		tokens:       make(map[string]accessToken),
		now:          time.Now,
	}, nil
}

// Authenticate verifies the credentials by obtaining a parent-scope token.
// The daemon calls this once at startup; a failure there is fatal.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.bearer(ctx, "")
	return err
}

// bearer returns a valid token for the given member scope, refreshing it
// when missing or within the expiry margin.
func (c *Client) bearer(ctx context.Context, memberCID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.tokens[memberCID]; ok && c.now().Add(tokenRefreshMargin).Before(tok.expiresAt) {
		return tok.value, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	if memberCID != "" {
		form.Set("member_cid", memberCID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", &AuthError{Status: resp.StatusCode}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if body.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("empty access token in response")}
	}

	tok := accessToken{
		value:     body.AccessToken,
		expiresAt: c.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	c.tokens[memberCID] = tok
	c.logger.Debug("oauth2 token acquired", zap.String("member_cid", memberCID))
	return tok.value, nil
}

// paginationMeta mirrors the meta.pagination object the API attaches to
// query responses. The parent CID rides along on device queries.
type paginationMeta struct {
	Pagination struct {
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
		Total  int    `json:"total"`
		CID    string `json:"cid"`
	} `json:"pagination"`
}

// get performs an authenticated GET under the given member scope and
// decodes the JSON body into out.
func (c *Client) get(ctx context.Context, memberCID, path string, query url.Values, out any) error {
	token, err := c.bearer(ctx, memberCID)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Endpoint: path, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// ParentCID resolves the management (root) tenant's own CID from the
// pagination metadata of a minimal device query.
func (c *Client) ParentCID(ctx context.Context) (model.TenantID, error) {
	query := url.Values{}
	query.Set("limit", "1")

	var resp struct {
		Meta      paginationMeta `json:"meta"`
		Resources []string       `json:"resources"`
	}
	if err := c.get(ctx, "", "/devices/queries/devices/v1", query, &resp); err != nil {
		return "", fmt.Errorf("query parent cid: %w", err)
	}
	if resp.Meta.Pagination.CID == "" {
		return "", fmt.Errorf("device query response carried no cid")
	}
	return model.NormalizeID(resp.Meta.Pagination.CID), nil
}

// QueryChildren returns one page of child-tenant CIDs plus the
// server-reported total.
func (c *Client) QueryChildren(ctx context.Context, limit, offset int) ([]string, int, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var resp struct {
		Meta      paginationMeta `json:"meta"`
		Resources []string       `json:"resources"`
	}
	if err := c.get(ctx, "", "/mssp/queries/children/v1", query, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Resources, resp.Meta.Pagination.Total, nil
}

// GetChildren resolves display names for a batch of child CIDs.
func (c *Client) GetChildren(ctx context.Context, ids []string) ([]ChildTenant, error) {
	query := url.Values{}
	for _, id := range ids {
		query.Add("ids", id)
	}

	var resp struct {
		Resources []ChildTenant `json:"resources"`
	}
	if err := c.get(ctx, "", "/mssp/entities/children/v1", query, &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// QueryDeviceCount returns the number of endpoints seen in the last 7 days
// for the given member scope. An empty memberCID queries the parent tenant
// without scoping. Only pagination metadata is requested (limit 1), so the
// call stays cheap regardless of fleet size.
func (c *Client) QueryDeviceCount(ctx context.Context, memberCID string) (int, error) {
	query := url.Values{}
	query.Set("filter", deviceFilter)
	query.Set("limit", "1")

	var resp struct {
		Meta      paginationMeta `json:"meta"`
		Resources []string       `json:"resources"`
	}
	if err := c.get(ctx, memberCID, "/devices/queries/devices-scroll/v1", query, &resp); err != nil {
		return 0, err
	}
	return resp.Meta.Pagination.Total, nil
}

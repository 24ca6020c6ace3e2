package tailnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"

	httpclient "github.com/appleboy/go-httpclient"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultNetwork is the wildcard scope meaning "the tailnet of the caller".
// It is also the sentinel returned when discovery fails.
const DefaultNetwork = "-"

// ProvisionedKeyLifetime is the nominal expiry reported for operator keys.
const ProvisionedKeyLifetime = 24 * time.Hour

const (
	maxBodyPreview = 512
	maxBodyRead    = 4 << 20
)

var _ core.Directory = (*Client)(nil)

// Client talks to the Tailscale API v2. It never retries; the configured
// timeout bounds every call.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	tailnet      string
	provisioned  string
	httpClient   *http.Client
	logger       *zap.Logger
	metrics      core.Recorder
	now          func() time.Time
}

// NewClient builds a directory client from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger, metrics core.Recorder) (*Client, error) {
	if cfg.TailscaleTimeout <= 0 {
		return nil, fmt.Errorf("tailnet: a positive timeout is required")
	}
	if cfg.TailscaleInsecureSkipVerify {
		logger.Warn("Tailscale TLS verification is disabled (TAILSCALE_INSECURE_SKIP_VERIFY=true)")
	}

	hc, err := httpclient.NewClient(
		httpclient.WithTimeout(cfg.TailscaleTimeout),
		httpclient.WithInsecureSkipVerify(cfg.TailscaleInsecureSkipVerify),
	)
	if err != nil {
		return nil, fmt.Errorf("tailnet: failed to create HTTP client: %w", err)
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.TailscaleAPIURL, "/"),
		clientID:     cfg.TailscaleClientID,
		clientSecret: cfg.TailscaleClientSecret,
		tailnet:      cfg.TailscaleTailnet,
		provisioned:  cfg.TailscaleAuthKey,
		httpClient:   hc,
		logger:       logger.Named("tailnet"),
		metrics:      metrics,
		now:          time.Now,
	}, nil
}

// Authenticate runs the OAuth2 client-credentials grant.
func (c *Client) Authenticate(ctx context.Context) (token string, err error) {
	defer c.observe("authenticate", time.Now(), &err)

	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("%w: client credentials are not configured", ErrUpstreamAuth)
	}

	cc := clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     c.baseURL + "/api/v2/oauth/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		c.logger.Warn("client credentials grant rejected", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUpstreamAuth)
	}
	return tok.AccessToken, nil
}

// ResolveNetworkName returns the configured tailnet, the wildcard scope when
// the token accepts it, or the name reported by whoami. When none of those
// succeed it returns DefaultNetwork and reports the name as undiscovered.
func (c *Client) ResolveNetworkName(ctx context.Context, accessToken string) (string, bool) {
	if c.tailnet != "" {
		return c.tailnet, true
	}

	probe := "/api/v2/tailnet/" + DefaultNetwork + "/devices"
	err := c.do(ctx, "probe_network", http.MethodGet, probe, accessToken, nil, nil)
	if err == nil {
		return DefaultNetwork, true
	}
	c.logger.Debug("wildcard network scope rejected", zap.Error(err))

	var who whoamiResponse
	if err := c.do(ctx, "whoami", http.MethodGet, "/api/v2/whoami", accessToken, nil, &who); err != nil {
		c.logger.Warn("network name discovery failed, using wildcard scope", zap.Error(err))
		return DefaultNetwork, false
	}
	if name := strings.TrimSpace(who.Tailnet.Name); name != "" {
		return name, true
	}
	if name := strings.TrimSpace(who.Domain); name != "" {
		return name, true
	}
	return DefaultNetwork, false
}

// ListDevices returns every device in network.
func (c *Client) ListDevices(
	ctx context.Context,
	accessToken, network string,
) ([]core.NetworkDevice, error) {
	var resp deviceListResponse
	path := "/api/v2/tailnet/" + url.PathEscape(network) + "/devices?fields=all"
	if err := c.do(ctx, "list_devices", http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return parseDevices(resp.Devices), nil
}

// FindDeviceByIdentifier lists the network and returns the first match, or nil.
func (c *Client) FindDeviceByIdentifier(
	ctx context.Context,
	accessToken, network, identifier string,
) (*core.NetworkDevice, error) {
	devices, err := c.ListDevices(ctx, accessToken, network)
	if err != nil {
		return nil, err
	}
	return MatchDevice(devices, identifier), nil
}

// IssuePreAuthKey returns the operator provisioned key when one is
// configured, otherwise mints a reusable preauthorized key.
func (c *Client) IssuePreAuthKey(
	ctx context.Context,
	accessToken, network string,
	tags []string,
	description string,
) (*core.PreAuthKey, error) {
	if c.provisioned != "" {
		return &core.PreAuthKey{
			Key:           c.provisioned,
			ExpiresAt:     c.now().Add(ProvisionedKeyLifetime),
			Reusable:      true,
			Ephemeral:     false,
			Preauthorized: true,
			Tags:          append([]string(nil), tags...),
			Provisioned:   true,
		}, nil
	}
	if accessToken == "" {
		return nil, fmt.Errorf("%w: no provisioned key and no access token", ErrUpstream)
	}

	var req createKeyRequest
	req.Capabilities.Devices.Create.Reusable = true
	req.Capabilities.Devices.Create.Ephemeral = false
	req.Capabilities.Devices.Create.Preauthorized = true
	req.Capabilities.Devices.Create.Tags = tags
	req.ExpirySeconds = int64(ProvisionedKeyLifetime / time.Second)
	req.Description = truncate(description, 50)

	var resp createKeyResponse
	path := "/api/v2/tailnet/" + url.PathEscape(network) + "/keys"
	if err := c.do(ctx, "create_key", http.MethodPost, path, accessToken, req, &resp); err != nil {
		return nil, err
	}
	if resp.Key == "" {
		return nil, fmt.Errorf("%w: create_key: response carried no key", ErrUpstream)
	}

	expires := resp.Expires
	if expires.IsZero() {
		expires = c.now().Add(ProvisionedKeyLifetime)
	}
	return &core.PreAuthKey{
		Key:           resp.Key,
		ExpiresAt:     expires,
		Reusable:      true,
		Ephemeral:     false,
		Preauthorized: true,
		Tags:          append([]string(nil), tags...),
	}, nil
}

// do performs one request. A nil out discards the body.
func (c *Client) do(
	ctx context.Context,
	op, method, path, accessToken string,
	body, out any,
) (err error) {
	defer c.observe(op, time.Now(), &err)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %s: encode request: %v", ErrUpstream, op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %v", ErrUpstream, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), maxBodyPreview),
		}
		c.logger.Warn("tailscale API error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", apiErr.Body),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrUpstream, op, err)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, errp *error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordDirectoryCall(op, *errp == nil, time.Since(start))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package lobby

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"majdl/internal/config"
	"majdl/internal/services"
)

const discoveryStage = "discovery"

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Endpoint is the outcome of service discovery.
type Endpoint struct {
	Version string
	Servers []string
	URL     string
}

// Discoverer resolves the client version and a websocket gateway from the
// public version and config documents.
type Discoverer struct {
	client     HTTPDoer
	versionURL  string
	configURL   string
	resourceURL string
	region      string
	service    string
	pick       func(n int) int
}

// DiscoveryOption customises a Discoverer.
type DiscoveryOption func(*Discoverer)

// WithHTTPClient overrides the HTTP client used for discovery requests.
func WithHTTPClient(client HTTPDoer) DiscoveryOption {
	return func(d *Discoverer) {
		if client != nil {
			d.client = client
		}
	}
}

// WithPicker overrides the random gateway choice (used in tests).
func WithPicker(pick func(n int) int) DiscoveryOption {
	return func(d *Discoverer) {
		if pick != nil {
			d.pick = pick
		}
	}
}

// NewDiscoverer builds a Discoverer from the [lobby] configuration.
func NewDiscoverer(cfg *config.Config, opts ...DiscoveryOption) *Discoverer {
	d := &Discoverer{
		client:     http.DefaultClient,
		versionURL:  cfg.Lobby.VersionURL,
		configURL:   cfg.Lobby.ConfigURL,
		resourceURL: cfg.Lobby.ResourceURL,
		region:      cfg.Lobby.Region,
		service:     cfg.Lobby.GatewayService,
		pick:        rand.IntN,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover fetches the client version, the regional gateway list and picks
// one gateway uniformly at random.
func (d *Discoverer) Discover(ctx context.Context) (Endpoint, error) {
	version, err := d.Version(ctx)
	if err != nil {
		return Endpoint{}, err
	}

	configDoc, err := d.getJSON(ctx, strings.ReplaceAll(d.configURL, "{version}", version))
	if err != nil {
		return Endpoint{}, err
	}
	regionURL := gjson.GetBytes(configDoc, "ip.0.region_urls."+d.region).String()
	if regionURL == "" {
		return Endpoint{}, services.Wrap(services.ErrTransport, discoveryStage, "config",
			fmt.Sprintf("config document has no %s region url", d.region), nil)
	}

	query := url.Values{}
	query.Set("service", d.service)
	query.Set("protocol", "ws")
	query.Set("ssl", "true")
	gatewayDoc, err := d.getJSON(ctx, regionURL+"?"+query.Encode())
	if err != nil {
		return Endpoint{}, err
	}
	var servers []string
	for _, server := range gjson.GetBytes(gatewayDoc, "servers").Array() {
		if s := strings.TrimSpace(server.String()); s != "" {
			servers = append(servers, s)
		}
	}
	if len(servers) == 0 {
		return Endpoint{}, services.Wrap(services.ErrTransport, discoveryStage, "gateway", "gateway list is empty", nil)
	}

	return Endpoint{
		Version: version,
		Servers: servers,
		URL:     "wss://" + servers[d.pick(len(servers))] + "/",
	}, nil
}

// Version fetches the current client version string.
func (d *Discoverer) Version(ctx context.Context) (string, error) {
	versionDoc, err := d.getJSON(ctx, d.versionURL)
	if err != nil {
		return "", err
	}
	version := gjson.GetBytes(versionDoc, "version").String()
	if version == "" {
		return "", services.Wrap(services.ErrTransport, discoveryStage, "version", "version document has no version", nil)
	}
	return version, nil
}

func (d *Discoverer) getJSON(ctx context.Context, target string) ([]byte, error) {
	body, err := Get(ctx, d.client, target)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, services.Wrap(services.ErrTransport, discoveryStage, "decode", fmt.Sprintf("%s returned invalid JSON", target), nil)
	}
	return body, nil
}

// Get performs a GET request and returns the body. Non-2xx statuses and
// network failures wrap services.ErrTransport.
func Get(ctx context.Context, client HTTPDoer, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "http", "build request", target, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "http", "get", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrTransport, "http", "get",
			fmt.Sprintf("%s returned %d: %s", target, resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "http", "read body", target, err)
	}
	return body, nil
}

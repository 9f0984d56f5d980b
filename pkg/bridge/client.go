// Package bridge talks to externally hosted workflow runtimes.
package bridge

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/sony/gobreaker"
)

const (
	defaultTimeout          = 5 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	defaultMaxBreakers      = 1024
	maxResponseBodySize     = 5 * 1024 * 1024

	EnvironmentHeader = "X-Herald-Environment-Id"
	discoverAction    = "discover"
)

var (
	// ErrDiscoveryFailed is returned when a bridge answers with a non-success status.
	ErrDiscoveryFailed = errors.New("bridge discovery failed")

	// ErrInvalidBridgeURL is returned for bridge URLs that are not absolute http(s) URLs.
	ErrInvalidBridgeURL = errors.New("invalid bridge url")
)

// DiscoverResponse is the body a bridge returns for a discovery call.
type DiscoverResponse struct {
	Workflows []models.DiscoveredWorkflow `json:"workflows"`
}

// Config configures the bridge client.
type Config struct {
	// Timeout bounds a single discovery call.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker of a bridge host.
	FailureThreshold uint32
	// OpenTimeout is how long a breaker stays open before probing again.
	OpenTimeout time.Duration
	// MaxBreakers caps the number of bridge hosts with a breaker. The least
	// recently used breaker is dropped when a new host would exceed it.
	MaxBreakers int
}

// Client performs discovery calls with a timeout and a circuit breaker per bridge host.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*list.Element
	recency  *list.List
}

type hostBreaker struct {
	host    string
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a bridge client. Zero config values fall back to defaults.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaultFailureThreshold
	}

	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaultOpenTimeout
	}

	if config.MaxBreakers <= 0 {
		config.MaxBreakers = defaultMaxBreakers
	}

	return &Client{
		httpClient: &http.Client{},
		config:     config,
		logger:     logger.With("module", "bridge_client"),
		breakers:   make(map[string]*list.Element),
		recency:    list.New(),
	}
}

// Discover asks the bridge at bridgeURL for its workflow descriptors.
func (c *Client) Discover(ctx context.Context, bridgeURL, environmentID string) (*DiscoverResponse, error) {
	target, err := url.Parse(bridgeURL)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBridgeURL, bridgeURL)
	}

	query := target.Query()
	query.Set("action", discoverAction)
	target.RawQuery = query.Encode()

	breaker := c.breaker(target.Host)

	result, err := breaker.Execute(func() (any, error) {
		return c.discover(ctx, target.String(), environmentID)
	})
	if err != nil {
		return nil, err
	}

	response, _ := result.(*DiscoverResponse)

	return response, nil
}

func (c *Client) discover(ctx context.Context, target, environmentID string) (*DiscoverResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(EnvironmentHeader, environmentID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close discovery response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrDiscoveryFailed, resp.StatusCode)
	}

	var response DiscoverResponse

	err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&response)
	if err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	return &response, nil
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.breakers[host]; ok {
		c.recency.MoveToFront(element)

		entry, _ := element.Value.(*hostBreaker)

		return entry.breaker
	}

	threshold := c.config.FailureThreshold
	logger := c.logger

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     c.config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Bridge circuit breaker state changed",
				"host", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	c.breakers[host] = c.recency.PushFront(&hostBreaker{host: host, breaker: breaker})

	for c.recency.Len() > c.config.MaxBreakers {
		c.evictOldest()
	}

	return breaker
}

func (c *Client) evictOldest() {
	oldest := c.recency.Back()
	if oldest == nil {
		return
	}

	c.recency.Remove(oldest)

	entry, _ := oldest.Value.(*hostBreaker)
	delete(c.breakers, entry.host)
}

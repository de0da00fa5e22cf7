package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

const (
	defaultUserAgent = "safe-route-navigation"
	defaultLimit     = 5
)

// Geocoder resolves free-text place names to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, placeText string) (route.Coordinate, error)
}

// Config holds the Nominatim client settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type nominatimResult struct {
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Importance  float64 `json:"importance"`
}

// NominatimClient queries an OpenStreetMap Nominatim instance.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// NewNominatimClient creates a NominatimClient.
func NewNominatimClient(cfg Config, logger *zap.Logger) *NominatimClient {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: ua,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

// searchRequest builds the /search request for a place name.
func (c *NominatimClient) searchRequest(ctx context.Context, placeText string) (*http.Request, error) {
	if strings.TrimSpace(placeText) == "" {
		return nil, route.NewValidationError("place text is required")
	}
	params := url.Values{
		"q":      {placeText},
		"format": {"json"},
		"limit":  {strconv.Itoa(defaultLimit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, route.NewTransportError("geocoder", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Resolve returns the first-ranked match for placeText.
func (c *NominatimClient) Resolve(ctx context.Context, placeText string) (route.Coordinate, error) {
	req, err := c.searchRequest(ctx, placeText)
	if err != nil {
		return route.Coordinate{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return route.Coordinate{}, route.NewTransportError("geocoder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return route.Coordinate{}, route.NewTransportError("geocoder",
			fmt.Errorf("nominatim returned status %d", resp.StatusCode))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return route.Coordinate{}, route.NewTransportError("geocoder", fmt.Errorf("decode response: %w", err))
	}

	if len(results) == 0 {
		return route.Coordinate{}, route.NewNotFoundError(placeText)
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return route.Coordinate{}, route.NewTransportError("geocoder", fmt.Errorf("parse latitude: %w", err))
	}
	lng, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return route.Coordinate{}, route.NewTransportError("geocoder", fmt.Errorf("parse longitude: %w", err))
	}
	coord, err := route.NewCoordinate(lat, lng)
	if err != nil {
		return route.Coordinate{}, route.NewTransportError("geocoder", err)
	}

	c.logger.Debug("geocoded place",
		zap.String("query", placeText),
		zap.String("match", first.DisplayName),
		zap.Int("candidates", len(results)),
	)
	return coord, nil
}

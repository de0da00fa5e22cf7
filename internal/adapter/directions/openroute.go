package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

const defaultProfile = "driving-car"

// Provider returns path geometry and turn-by-turn steps between two points.
type Provider interface {
	Directions(ctx context.Context, from, to route.Coordinate) (route.Directions, error)
}

// Config holds the OpenRouteService client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Profile string
	Timeout time.Duration
}

// orsStep is a single maneuver inside a segment.
type orsStep struct {
	Instruction string  `json:"instruction"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Type        int     `json:"type"`
	Name        string  `json:"name"`
}

type orsSegment struct {
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Steps    []orsStep `json:"steps"`
}

// orsFeature follows GeoJSON: coordinates are [lon, lat] pairs.
type orsFeature struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string       `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Segments []orsSegment `json:"segments"`
	} `json:"properties"`
}

type orsResponse struct {
	Type     string       `json:"type"`
	Features []orsFeature `json:"features"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenRouteClient calls the OpenRouteService directions API.
type OpenRouteClient struct {
	baseURL string
	apiKey  string
	profile string
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenRouteClient creates an OpenRouteClient.
func NewOpenRouteClient(cfg Config, logger *zap.Logger) *OpenRouteClient {
	profile := cfg.Profile
	if profile == "" {
		profile = defaultProfile
	}
	return &OpenRouteClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		profile: profile,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (c *OpenRouteClient) directionsRequest(ctx context.Context, from, to route.Coordinate) (*http.Request, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{
		"api_key": {c.apiKey},
		"start":   {from.LonLat()},
		"end":     {to.LonLat()},
	}
	apiURL := fmt.Sprintf("%s/v2/directions/%s?%s", c.baseURL, url.PathEscape(c.profile), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, route.NewTransportError("directions", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	return req, nil
}

// Routing error codes in the 2000 range are answers about the request, such
// as an unroutable point pair, rather than service failures.
const (
	minRoutingErrorCode = 2000
	maxRoutingErrorCode = 2999
)

// isRoutingError reports whether a non-200 answer carries a routing error and
// no route feature. Server errors and rejected credentials are excluded.
func isRoutingError(status int, payload orsResponse) bool {
	if status >= http.StatusInternalServerError || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return false
	}
	if payload.Error == nil || len(payload.Features) > 0 {
		return false
	}
	return payload.Error.Code >= minRoutingErrorCode && payload.Error.Code <= maxRoutingErrorCode
}

// Directions fetches the route geometry and steps. Coordinates are returned
// in (latitude, longitude) order; instruction text is passed through as is.
func (c *OpenRouteClient) Directions(ctx context.Context, from, to route.Coordinate) (route.Directions, error) {
	req, err := c.directionsRequest(ctx, from, to)
	if err != nil {
		return route.Directions{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return route.Directions{}, route.NewTransportError("directions", err)
	}
	defer resp.Body.Close()

	var payload orsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return route.Directions{}, route.NewTransportError("directions", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK {
		if isRoutingError(resp.StatusCode, payload) {
			c.logger.Info("directions service found no route",
				zap.Int("status", resp.StatusCode),
				zap.Int("code", payload.Error.Code),
				zap.String("message", payload.Error.Message),
			)
			return route.Directions{}, route.NewNoGeometryError(payload.Error.Message)
		}
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if payload.Error != nil {
			msg = fmt.Sprintf("%s: %s", msg, payload.Error.Message)
		}
		return route.Directions{}, route.NewTransportError("directions", fmt.Errorf("openrouteservice returned %s", msg))
	}

	if len(payload.Features) == 0 {
		return route.Directions{}, route.NewNoGeometryError("directions response has no route feature")
	}
	feature := payload.Features[0]

	path := make([]route.Coordinate, 0, len(feature.Geometry.Coordinates))
	for _, pos := range feature.Geometry.Coordinates {
		if len(pos) < 2 {
			return route.Directions{}, route.NewNoGeometryError("directions geometry has a malformed position")
		}
		coord, err := route.NewCoordinate(pos[1], pos[0])
		if err != nil {
			return route.Directions{}, route.NewNoGeometryError("directions geometry has an out-of-range position")
		}
		path = append(path, coord)
	}
	if len(path) < 2 {
		return route.Directions{}, route.NewNoGeometryError("directions geometry has fewer than two points")
	}

	var steps []route.NavigationStep
	for _, seg := range feature.Properties.Segments {
		for _, s := range seg.Steps {
			steps = append(steps, route.NavigationStep{
				Instruction: s.Instruction,
				DistanceM:   s.Distance,
				DurationS:   s.Duration,
			})
		}
	}

	c.logger.Debug("fetched directions",
		zap.Int("points", len(path)),
		zap.Int("steps", len(steps)),
		zap.String("profile", c.profile),
	)
	return route.Directions{Path: path, Steps: steps}, nil
}

package ranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

// SafestRoutePath is the ranker endpoint answering safest-route queries.
const SafestRoutePath = "/api/v1/routes/safest"

// Ranker picks the safest corridor between two named places.
type Ranker interface {
	Rank(ctx context.Context, startText, endText string) (route.SafetyCandidate, error)
}

// Request is the wire body sent to the safety ranker.
type Request struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Candidate is a ranked corridor as returned on the wire.
type Candidate struct {
	Name        string       `json:"name"`
	SafetyScore float64      `json:"safety_score"`
	Path        [][2]float64 `json:"path,omitempty"`
}

// Response is the wire body returned by the safety ranker. Exactly one of
// Error or SafestRoute is expected.
type Response struct {
	Error       string      `json:"error,omitempty"`
	SafestRoute *Candidate  `json:"safest_route,omitempty"`
	AllRoutes   []Candidate `json:"all_routes,omitempty"`
}

// Client calls the safety ranker over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a ranker Client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) rankRequest(ctx context.Context, startText, endText string) (*http.Request, error) {
	if strings.TrimSpace(startText) == "" || strings.TrimSpace(endText) == "" {
		return nil, route.NewValidationError("start and end are required")
	}
	body, err := json.Marshal(Request{Start: startText, End: endText})
	if err != nil {
		return nil, route.NewTransportError("safety ranker", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SafestRoutePath, bytes.NewReader(body))
	if err != nil {
		return nil, route.NewTransportError("safety ranker", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Rank returns the ranker's single best candidate. The core never re-ranks it.
func (c *Client) Rank(ctx context.Context, startText, endText string) (route.SafetyCandidate, error) {
	req, err := c.rankRequest(ctx, startText, endText)
	if err != nil {
		return route.SafetyCandidate{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return route.SafetyCandidate{}, route.NewTransportError("safety ranker", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return route.SafetyCandidate{}, route.NewTransportError("safety ranker", fmt.Errorf("read body: %w", err))
	}

	var payload Response
	decodeErr := json.Unmarshal(raw, &payload)

	// An error payload means the ranker answered but found nothing usable.
	if decodeErr == nil && payload.Error != "" {
		c.logger.Info("safety ranker reported no route",
			zap.String("start", startText),
			zap.String("end", endText),
			zap.String("reason", payload.Error),
		)
		return route.SafetyCandidate{}, route.NewNoRouteFoundError(payload.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return route.SafetyCandidate{}, route.NewTransportError("safety ranker",
			fmt.Errorf("ranker returned status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return route.SafetyCandidate{}, route.NewTransportError("safety ranker", fmt.Errorf("decode response: %w", decodeErr))
	}
	if payload.SafestRoute == nil || payload.SafestRoute.Name == "" {
		return route.SafetyCandidate{}, route.NewTransportError("safety ranker", fmt.Errorf("response has no safest_route"))
	}

	return route.SafetyCandidate{
		Name:        payload.SafestRoute.Name,
		SafetyScore: payload.SafestRoute.SafetyScore,
	}, nil
}

package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carelineai/concierge/pkg/logging"
)

const (
	defaultMapsBaseURL = "https://maps.googleapis.com"
	searchTimeout      = 10 * time.Second
)

// Clinic is one candidate returned by a nearby search.
type Clinic struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   string  `json:"phone,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
}

// Client searches for nearby clinics using the Google Maps Geocoding and
// Places Text Search APIs.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig configures the places client.
type ClientConfig struct {
	APIKey string
	// BaseURL overrides the Maps API base URL (for testing).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewClient creates a clinic search client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("places: API key required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMapsBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: searchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SearchClinics geocodes the postal code and returns nearby clinics matching
// the specialty keyword, best-rated first as returned by the API.
func (c *Client) SearchClinics(ctx context.Context, postalCode, specialty string) ([]Clinic, error) {
	lat, lng, err := c.geocode(ctx, postalCode)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("query", specialty+" clinic")
	query.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	query.Set("radius", "8000")
	query.Set("key", c.apiKey)

	var parsed struct {
		Status  string `json:"status"`
		Results []struct {
			Name             string  `json:"name"`
			FormattedAddress string  `json:"formatted_address"`
			Rating           float64 `json:"rating"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/maps/api/place/textsearch/json", query, &parsed); err != nil {
		return nil, fmt.Errorf("places: search: %w", err)
	}
	if parsed.Status != "OK" && parsed.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places: search status %s", parsed.Status)
	}

	clinics := make([]Clinic, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		clinics = append(clinics, Clinic{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Rating:  r.Rating,
		})
	}
	c.logger.Info("clinic search complete",
		"postal_code", postalCode,
		"specialty", specialty,
		"results", len(clinics),
	)
	return clinics, nil
}

func (c *Client) geocode(ctx context.Context, postalCode string) (float64, float64, error) {
	query := url.Values{}
	query.Set("address", postalCode)
	query.Set("key", c.apiKey)

	var parsed struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/maps/api/geocode/json", query, &parsed); err != nil {
		return 0, 0, fmt.Errorf("places: geocode: %w", err)
	}
	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return 0, 0, fmt.Errorf("places: geocode status %s", parsed.Status)
	}
	loc := parsed.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

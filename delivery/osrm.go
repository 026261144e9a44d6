package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"food-order-service/models"
)

// OSRMProvider queries an OSRM-compatible /route/v1/driving endpoint.
type OSRMProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewOSRMProvider(baseURL string) *OSRMProvider {
	return &OSRMProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

func (p *OSRMProvider) RouteDistance(ctx context.Context, from, to models.Coordinates) (*float64, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		p.BaseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("routing service returned %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode routing response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		// NoRoute, NoSegment and friends: the points are not connected.
		return nil, nil
	}
	d := body.Routes[0].Distance
	return &d, nil
}

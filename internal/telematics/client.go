package telematics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
	telemetry "fleetwatch-cloud/internal/telemetry/domain"
)

// Client is a minimal REST client for the telematics provider feed.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a feed client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("telematics: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// FetchSamples returns point readings recorded at or after the cursor.
func (c *Client) FetchSamples(ctx context.Context, since time.Time) ([]telemetry.Sample, error) {
	path := fmt.Sprintf("/api/v1/samples?since=%s", since.UTC().Format(time.RFC3339))
	var resp samplesPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	samples := make([]telemetry.Sample, 0, len(resp.Data))
	for _, item := range resp.Data {
		samples = append(samples, telemetry.Sample{
			DeviceID:    item.DeviceID,
			Timestamp:   time.UnixMilli(item.TsMillis).UTC(),
			Position:    fleet.Position{Latitude: item.Lat, Longitude: item.Lon},
			SpeedKmh:    item.SpeedKmh,
			BatteryPct:  item.BatteryPct,
			ShockG:      item.ShockG,
			EngineHours: item.EngineHours,
		})
	}
	return samples, nil
}

// FetchUsageEvents returns tool-activity intervals starting at or after
// the cursor.
func (c *Client) FetchUsageEvents(ctx context.Context, since time.Time) ([]telemetry.UsageEvent, error) {
	path := fmt.Sprintf("/api/v1/usage?since=%s", since.UTC().Format(time.RFC3339))
	var resp usagePage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	events := make([]telemetry.UsageEvent, 0, len(resp.Data))
	for _, item := range resp.Data {
		events = append(events, telemetry.UsageEvent{
			ID:              item.ID,
			DeviceID:        item.DeviceID,
			StartAt:         time.UnixMilli(item.StartMillis).UTC(),
			DurationSeconds: item.DurationSeconds,
			ToolActive:      item.ToolActive,
		})
	}
	return events, nil
}

type sampleItem struct {
	DeviceID    string  `json:"deviceId"`
	TsMillis    int64   `json:"ts"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SpeedKmh    float64 `json:"speedKmh"`
	BatteryPct  float64 `json:"batteryPct"`
	ShockG      float64 `json:"shockG"`
	EngineHours float64 `json:"engineHours"`
}

type samplesPage struct {
	Data []sampleItem `json:"data"`
}

type usageItem struct {
	ID              string `json:"id"`
	DeviceID        string `json:"deviceId"`
	StartMillis     int64  `json:"startTs"`
	DurationSeconds int    `json:"durationSeconds"`
	ToolActive      bool   `json:"toolActive"`
}

type usagePage struct {
	Data []usageItem `json:"data"`
}

var errNotFound = errors.New("telematics: not found")

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telematics: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

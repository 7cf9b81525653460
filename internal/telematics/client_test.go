package telematics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientFetchSamples(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Authorization")
		if r.URL.Path != "/api/v1/samples" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("since") == "" {
			t.Error("missing since param")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"deviceId":"dev-1","ts":1700000000000,"lat":48.85,"lon":2.35,"speedKmh":12.5,"batteryPct":77,"shockG":0.3,"engineHours":101.5}
		]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token-1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	samples, err := client.FetchSamples(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("FetchSamples: %v", err)
	}
	if gotAuth != "Bearer token-1" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	sample := samples[0]
	if sample.DeviceID != "dev-1" {
		t.Errorf("device id = %q", sample.DeviceID)
	}
	if !sample.Timestamp.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("timestamp = %v", sample.Timestamp)
	}
	if sample.Position.Latitude != 48.85 || sample.Position.Longitude != 2.35 {
		t.Errorf("position = %+v", sample.Position)
	}
	if sample.EngineHours != 101.5 {
		t.Errorf("engine hours = %v", sample.EngineHours)
	}
}

func TestClientFetchUsageEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/usage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"evt-1","deviceId":"dev-1","startTs":1700000000000,"durationSeconds":35,"toolActive":true}
		]}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	events, err := client.FetchUsageEvents(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("FetchUsageEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	event := events[0]
	if event.ID != "evt-1" || event.DeviceID != "dev-1" {
		t.Errorf("event key = %q/%q", event.ID, event.DeviceID)
	}
	if event.DurationSeconds != 35 || !event.ToolActive {
		t.Errorf("event payload = %+v", event)
	}
}

func TestClientNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	samples, err := client.FetchSamples(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("FetchSamples: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected empty result, got %d", len(samples))
	}
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.FetchSamples(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error on http 500")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("", "token"); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

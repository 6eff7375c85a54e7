package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestMapsServer(t *testing.T, searchBody string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/maps/api/geocode/json":
			if r.URL.Query().Get("key") != "maps-key" {
				t.Errorf("geocode missing api key")
			}
			w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":39.76,"lng":-84.19}}}]}`))
		case "/maps/api/place/textsearch/json":
			if got := r.URL.Query().Get("radius"); got != "8000" {
				t.Errorf("radius = %q", got)
			}
			w.Write([]byte(searchBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{APIKey: "maps-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSearchClinics(t *testing.T) {
	client := newTestMapsServer(t,
		`{"status":"OK","results":[
			{"name":"Maple Clinic","formatted_address":"12 Maple St, Dayton, OH","rating":4.6},
			{"name":"Oak Family Practice","formatted_address":"34 Oak Ave, Dayton, OH","rating":4.2}
		]}`)

	clinics, err := client.SearchClinics(context.Background(), "45402", "dermatologist")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(clinics) != 2 {
		t.Fatalf("expected 2 clinics, got %d", len(clinics))
	}
	if clinics[0].Name != "Maple Clinic" || clinics[0].Rating != 4.6 {
		t.Fatalf("first clinic wrong: %+v", clinics[0])
	}
	if clinics[1].Address != "34 Oak Ave, Dayton, OH" {
		t.Fatalf("address lost: %+v", clinics[1])
	}
}

func TestSearchClinicsZeroResults(t *testing.T) {
	client := newTestMapsServer(t, `{"status":"ZERO_RESULTS","results":[]}`)
	clinics, err := client.SearchClinics(context.Background(), "45402", "dentist")
	if err != nil {
		t.Fatalf("zero results is not an error: %v", err)
	}
	if len(clinics) != 0 {
		t.Fatalf("expected no clinics, got %d", len(clinics))
	}
}

func TestSearchClinicsBadStatus(t *testing.T) {
	client := newTestMapsServer(t, `{"status":"REQUEST_DENIED","results":[]}`)
	if _, err := client.SearchClinics(context.Background(), "45402", "dentist"); err == nil {
		t.Fatal("expected error on REQUEST_DENIED")
	}
}

func TestGeocodeFailureStopsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/maps/api/geocode/json" {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		t.Errorf("search should not run after geocode failure, got %s", r.URL.Path)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{APIKey: "maps-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.SearchClinics(context.Background(), "00000", "dentist"); err == nil {
		t.Fatal("expected geocode error")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLookupLocalAddressSkipsProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected provider call for local address: %s", r.URL.Path)
	}))
	defer server.Close()

	client := NewGeoClient(server.URL, time.Second)

	for _, ip := range []string{"127.0.0.1", "::1", "localhost", "0.0.0.0"} {
		location := client.Lookup(context.Background(), ip)
		if location.Country != "Development" {
			t.Errorf("Lookup(%q).Country = %q, want %q", ip, location.Country, "Development")
		}
		if location.CountryCode != "DEV" {
			t.Errorf("Lookup(%q).CountryCode = %q, want %q", ip, location.CountryCode, "DEV")
		}
		if location.City != "localhost" {
			t.Errorf("Lookup(%q).City = %q, want %q", ip, location.City, "localhost")
		}
	}
}

func TestLookupSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"country": "Netherlands",
			"countryCode": "NL",
			"region": "NH",
			"regionName": "North Holland",
			"city": "Amsterdam",
			"zip": "1012",
			"lat": 52.37,
			"lon": 4.89,
			"timezone": "Europe/Amsterdam",
			"isp": "Example ISP",
			"org": "Example Org",
			"as": "AS1234 Example"
		}`))
	}))
	defer server.Close()

	client := NewGeoClient(server.URL, time.Second)
	location := client.Lookup(context.Background(), "93.184.216.34")

	if location.Country != "Netherlands" {
		t.Errorf("Country = %q, want %q", location.Country, "Netherlands")
	}
	if location.CountryCode != "NL" {
		t.Errorf("CountryCode = %q, want %q", location.CountryCode, "NL")
	}
	if location.Region != "North Holland" {
		t.Errorf("Region = %q, want %q (regionName, not region code)", location.Region, "North Holland")
	}
	if location.City != "Amsterdam" {
		t.Errorf("City = %q, want %q", location.City, "Amsterdam")
	}
	if location.Coordinates == nil {
		t.Fatal("Coordinates = nil, want value")
	}
	if location.Coordinates.Latitude != 52.37 || location.Coordinates.Longitude != 4.89 {
		t.Errorf("Coordinates = %+v, want {52.37 4.89}", *location.Coordinates)
	}
	if location.ASN != "AS1234 Example" {
		t.Errorf("ASN = %q, want %q", location.ASN, "AS1234 Example")
	}
}

func TestLookupProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "fail", "message": "private range"}`))
	}))
	defer server.Close()

	client := NewGeoClient(server.URL, time.Second)
	location := client.Lookup(context.Background(), "10.0.0.1")

	if location.Country != "Unknown" {
		t.Errorf("Country = %q, want %q", location.Country, "Unknown")
	}
	if location.CountryCode != "XX" {
		t.Errorf("CountryCode = %q, want %q", location.CountryCode, "XX")
	}
	if location.Coordinates != nil {
		t.Errorf("Coordinates = %+v, want nil", *location.Coordinates)
	}
}

func TestLookupTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewGeoClient(server.URL, time.Second)
	location := client.Lookup(context.Background(), "93.184.216.34")

	if location.Country != "Unknown" {
		t.Errorf("Country = %q, want %q", location.Country, "Unknown")
	}
}

func TestLookupMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewGeoClient(server.URL, time.Second)
	location := client.Lookup(context.Background(), "93.184.216.34")

	if location.Country != "Unknown" {
		t.Errorf("Country = %q, want %q", location.Country, "Unknown")
	}
}

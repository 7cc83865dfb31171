package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal/repo"
)

const DefaultGeoAPIURL = "http://ip-api.com/json"

// fields bitmask matching the provider's defaults for this lookup:
// status,message,country,countryCode,region,regionName,city,zip,lat,lon,
// timezone,isp,org,as.
const geoFields = "61439"

// GeoClient resolves a network address into a geographic classification. The
// lookup is total: any transport error, provider failure, or malformed
// payload degrades to an all-Unknown location and is never surfaced to the
// caller.
type GeoClient struct {
	baseURL string
	client  *http.Client
}

func NewGeoClient(baseURL string, timeout time.Duration) *GeoClient {
	if baseURL == "" {
		baseURL = DefaultGeoAPIURL
	}
	return &GeoClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type geoResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
}

func (g *GeoClient) Lookup(ctx context.Context, ipAddress string) repo.Location {
	if IsLocalAddress(ipAddress) {
		// Local traffic never triggers a lookup; the provider rate-limits
		// and a loopback address cannot be geolocated anyway.
		log.Debug().Str("ip", ipAddress).Msg("using development geolocation for local address")
		return DevelopmentLocation()
	}

	url := fmt.Sprintf("%s/%s?fields=%s", g.baseURL, ipAddress, geoFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Error().Err(err).Str("ip", ipAddress).Msg("failed to build geo lookup request")
		return UnknownLocation()
	}

	resp, err := g.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("ip", ipAddress).Msg("geo lookup failed")
		return UnknownLocation()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("ip", ipAddress).Msg("geo lookup returned non-OK status")
		return UnknownLocation()
	}

	var data geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Warn().Err(err).Str("ip", ipAddress).Msg("failed to decode geo response")
		return UnknownLocation()
	}

	if data.Status != "success" {
		log.Warn().Str("ip", ipAddress).Str("message", data.Message).Msg("geo provider reported failure")
		return UnknownLocation()
	}

	location := UnknownLocation()
	if data.Country != "" {
		location.Country = data.Country
	}
	if data.CountryCode != "" {
		location.CountryCode = data.CountryCode
	}
	if data.RegionName != "" {
		location.Region = data.RegionName
	}
	if data.City != "" {
		location.City = data.City
	}
	if data.Zip != "" {
		location.Zip = data.Zip
	}
	if data.Timezone != "" {
		location.Timezone = data.Timezone
	}
	if data.ISP != "" {
		location.ISP = data.ISP
	}
	if data.Org != "" {
		location.Org = data.Org
	}
	if data.AS != "" {
		location.ASN = data.AS
	}
	if data.Lat != 0 && data.Lon != 0 {
		location.Coordinates = &repo.Coordinates{Latitude: data.Lat, Longitude: data.Lon}
	}

	return location
}

// IsLocalAddress reports whether the address is loopback or otherwise local
// traffic that should short-circuit to the development sentinel.
func IsLocalAddress(ipAddress string) bool {
	switch ipAddress {
	case "127.0.0.1", "::1", "localhost", "0.0.0.0":
		return true
	}
	return false
}

func UnknownLocation() repo.Location {
	return repo.Location{
		Country:     "Unknown",
		CountryCode: "XX",
		Region:      "Unknown",
		City:        "Unknown",
		Zip:         "Unknown",
		Timezone:    "Unknown",
		ISP:         "Unknown",
		Org:         "Unknown",
		ASN:         "Unknown",
	}
}

// DevelopmentLocation is the fixed geography recorded for local addresses.
func DevelopmentLocation() repo.Location {
	return repo.Location{
		Country:     "Development",
		CountryCode: "DEV",
		Region:      "Development Region",
		City:        "localhost",
		Zip:         "00000",
		Coordinates: &repo.Coordinates{},
		Timezone:    time.Local.String(),
		ISP:         "Development ISP",
		Org:         "Development Organization",
		ASN:         "AS0 Development",
	}
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"udaay-be/models"
)

// Address is the human readable part of a location.
type Address struct {
	Formatted string
	City      string
	State     string
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, c models.Coordinates) (Address, error)
}

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleGeocoder calls the Google Maps reverse geocoding endpoint.
type GoogleGeocoder struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey:  apiKey,
		baseURL: googleGeocodeURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, c models.Coordinates) (Address, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(c.Lat, 'f', -1, 64)+","+strconv.FormatFloat(c.Lng, 'f', -1, 64))
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Address{}, goerr.Wrap(err, "failed to create geocode request")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Address{}, goerr.Wrap(err, "geocode request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Address{}, goerr.New("geocoder returned non-200", goerr.V("status", resp.StatusCode))
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Address{}, goerr.Wrap(err, "failed to decode geocode response")
	}
	if body.Status != "OK" || len(body.Results) == 0 {
		return Address{}, goerr.New("no geocode result", goerr.V("status", body.Status))
	}

	first := body.Results[0]
	addr := Address{Formatted: first.FormattedAddress}
	for _, comp := range first.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				addr.City = comp.LongName
			case "administrative_area_level_1":
				addr.State = comp.LongName
			}
		}
	}
	return addr, nil
}

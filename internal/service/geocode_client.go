package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AddressParts structured address components carried alongside a free-text
// address; they feed the client-side PNU derivation fallback.
type AddressParts struct {
	LegalDongCode string `json:"legal_dong_code"` // 10-digit administrative code
	Mountain      bool   `json:"mountain"`        // "san" lot numbering
	MainNo        int    `json:"main_no"`
	SubNo         int    `json:"sub_no"`
}

// GeocodeResult resolved parcel code. Derived is true when the code came
// from the structured-component fallback rather than the lookup service.
type GeocodeResult struct {
	ParcelCode string `json:"parcel_code"`
	Derived    bool   `json:"derived"`
}

// Geocoder resolves a free-text address to a 19-digit PNU.
type Geocoder interface {
	ResolveParcelCode(ctx context.Context, address string, parts *AddressParts) (*GeocodeResult, error)
}

var (
	legalDongCodeRe = regexp.MustCompile(`^\d{10}$`)
	parcelCodeRe    = regexp.MustCompile(`^\d{19}$`)
)

// ValidParcelCode reports whether s is a well-formed 19-digit PNU.
func ValidParcelCode(s string) bool {
	return parcelCodeRe.MatchString(s)
}

// DeriveParcelCode assembles a PNU from structured address components:
// 10-digit legal dong code, 1-digit mountain flag (1 plain, 2 san), 4-digit
// main lot number, 4-digit sub lot number.
func DeriveParcelCode(parts AddressParts) (string, error) {
	if !legalDongCodeRe.MatchString(parts.LegalDongCode) {
		return "", fmt.Errorf("invalid legal dong code: %q", parts.LegalDongCode)
	}
	if parts.MainNo < 0 || parts.MainNo > 9999 || parts.SubNo < 0 || parts.SubNo > 9999 {
		return "", fmt.Errorf("lot number out of range: %d-%d", parts.MainNo, parts.SubNo)
	}
	mountainFlag := 1
	if parts.Mountain {
		mountainFlag = 2
	}
	return fmt.Sprintf("%s%d%04d%04d", parts.LegalDongCode, mountainFlag, parts.MainNo, parts.SubNo), nil
}

// geocodeResponse lookup service response body.
type geocodeResponse struct {
	Status     string `json:"status"`
	ParcelCode string `json:"pnu"`
	Message    string `json:"message"`
}

// GeocodeClient calls the cadastral lookup service, falling back to
// DeriveParcelCode when the service is unavailable and structured
// components were supplied.
type GeocodeClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewGeocodeClient(baseURL, apiKey string, logger *zap.Logger) *GeocodeClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(1).
		SetHeader("Accept", "application/json").
		SetQueryParam("key", apiKey)

	return &GeocodeClient{httpClient: client, logger: logger}
}

func (c *GeocodeClient) ResolveParcelCode(ctx context.Context, address string, parts *AddressParts) (*GeocodeResult, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	var response geocodeResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&response).
		Get("/v1/cadastral/lookup")

	if err == nil && !resp.IsError() && response.Status == "OK" && response.ParcelCode != "" {
		return &GeocodeResult{ParcelCode: response.ParcelCode}, nil
	}

	if err != nil {
		c.logger.Warn("cadastral lookup unavailable", zap.String("address", address), zap.Error(err))
	} else {
		c.logger.Warn("cadastral lookup failed",
			zap.String("address", address),
			zap.Int("http_status", resp.StatusCode()),
			zap.String("status", response.Status),
		)
	}

	if parts == nil {
		return nil, fmt.Errorf("failed to resolve parcel code for %q", address)
	}
	code, derr := DeriveParcelCode(*parts)
	if derr != nil {
		return nil, fmt.Errorf("lookup failed and derivation failed: %w", derr)
	}
	return &GeocodeResult{ParcelCode: code, Derived: true}, nil
}

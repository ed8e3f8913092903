// Package mouser talks to the Mouser part search API and maintains the
// placeholder parts and vendor SKUs that automated BOM resolution creates.
package mouser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/benchfab/circuitstock/pkg/config"
	pkgerrors "github.com/benchfab/circuitstock/pkg/errors"
)

// VendorName is the catalog name automated lookup is keyed on.
const VendorName = "Mouser"

const searchByPartPath = "/api/v1/search/partnumber"

// PriceBreak is one volume tier of a SKU's price table.
type PriceBreak struct {
	Volume int
	Cost   decimal.Decimal
}

// CatalogPart is the slice of a Mouser search result the platform uses.
type CatalogPart struct {
	Name             string
	Description      string
	URLPath          string
	MouserPartNumber string
	PriceBreaks      []PriceBreak
}

// Client calls the Mouser search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient builds a Mouser API client from configuration.
func NewClient(cfg config.MouserConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

type searchRequest struct {
	SearchByPartRequest struct {
		MouserPartNumber string `json:"mouserPartNumber"`
	} `json:"SearchByPartRequest"`
}

type rawPriceBreak struct {
	Quantity int    `json:"Quantity"`
	Price    string `json:"Price"`
}

type rawPart struct {
	Description            string          `json:"Description"`
	ManufacturerPartNumber string          `json:"ManufacturerPartNumber"`
	MouserPartNumber       string          `json:"MouserPartNumber"`
	ProductDetailURL       string          `json:"ProductDetailUrl"`
	PriceBreaks            []rawPriceBreak `json:"PriceBreaks"`
}

type searchResponse struct {
	SearchResults struct {
		NumberOfResult int       `json:"NumberOfResult"`
		Parts          []rawPart `json:"Parts"`
	} `json:"SearchResults"`
}

// GetPart searches Mouser by part number. Ambiguous results are
// disambiguated by exact Mouser part number match; an empty result set is
// an external-lookup error.
func (c *Client) GetPart(ctx context.Context, partNumber string) (*CatalogPart, error) {
	var reqBody searchRequest
	reqBody.SearchByPartRequest.MouserPartNumber = partNumber
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode search request")
	}

	endpoint := c.baseURL + searchByPartPath + "?apiKey=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build search request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalLookup, err, "mouser search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalLookup, err, "read mouser response")
	}
	if resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeExternalLookup,
			fmt.Sprintf("mouser search returned status %d", resp.StatusCode))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalLookup, err, "decode mouser response")
	}

	results := parsed.SearchResults
	switch {
	case results.NumberOfResult > 1:
		for _, part := range results.Parts {
			if part.MouserPartNumber == partNumber {
				return convertPart(part)
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeExternalLookup,
			fmt.Sprintf("no exact match for %q among %d results", partNumber, results.NumberOfResult))
	case results.NumberOfResult != 1 || len(results.Parts) == 0:
		return nil, pkgerrors.New(pkgerrors.CodeExternalLookup,
			fmt.Sprintf("no results for %q", partNumber))
	default:
		return convertPart(results.Parts[0])
	}
}

func convertPart(raw rawPart) (*CatalogPart, error) {
	part := &CatalogPart{
		Name:             raw.ManufacturerPartNumber,
		Description:      raw.Description,
		MouserPartNumber: raw.MouserPartNumber,
		URLPath:          strings.TrimPrefix(raw.ProductDetailURL, "https://www.mouser.com"),
	}
	for _, tier := range raw.PriceBreaks {
		cost, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimPrefix(tier.Price, "$"), ",", ""))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeExternalLookup, err,
				fmt.Sprintf("parse price %q", tier.Price))
		}
		part.PriceBreaks = append(part.PriceBreaks, PriceBreak{Volume: tier.Quantity, Cost: cost})
	}
	return part, nil
}

// SelectPriceBreak walks the tiers in order and keeps the last one seen
// before the observed volume reaches 10. Returns false when the table is
// empty.
func SelectPriceBreak(breaks []PriceBreak) (PriceBreak, bool) {
	var selected PriceBreak
	found := false
	for _, tier := range breaks {
		if found && selected.Volume >= 10 {
			break
		}
		selected = tier
		found = true
	}
	return selected, found
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// openAlexResponse captures the fields we need from an OpenAlex work record.
type openAlexResponse struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

// openAlexLocation represents an open-access location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// OpenAlex looks up open-access PDF locations for DOIs.
type OpenAlex struct {
	Client    *http.Client
	Email     string
	UserAgent string
}

// NewOpenAlex returns a client; email joins OpenAlex's polite pool.
func NewOpenAlex(client *http.Client, email string) *OpenAlex {
	if client == nil {
		client = &http.Client{Timeout: types.DefaultResolveConfig().Timeout}
	}
	return &OpenAlex{Client: client, Email: email, UserAgent: types.DefaultUserAgent}
}

// LookupPDF queries OpenAlex for doi and returns the open-access PDF URL.
// It returns "" when the work has no open-access PDF.
func (o *OpenAlex) LookupPDF(ctx context.Context, doi string) (string, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + doi
	if o.Email != "" {
		apiURL += "?mailto=" + url.QueryEscape(o.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating OpenAlex request: %w", err)
	}
	req.Header.Set("User-Agent", o.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, o.Client, req, 0, nil)
	if err != nil {
		return "", fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &httputil.HTTPError{Status: resp.StatusCode, URL: apiURL}
	}

	var oa openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w: %v", httputil.ErrMalformed, err)
	}

	if oa.BestOALocation == nil {
		return "", nil
	}
	return oa.BestOALocation.PDFURL, nil
}

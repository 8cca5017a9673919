// Package ocr sends receipt images to a text recognition service.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/request"
)

// Extractor turns an image into raw text.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// HTTPExtractor posts the base64 image as {"image": ...} and expects {"text": ...}.
type HTTPExtractor struct {
	url     string
	apiKey  string
	timeout time.Duration
}

func NewHTTPExtractor(url, apiKey string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExtractor{url: url, apiKey: apiKey, timeout: timeout}
}

type extractRequest struct {
	Image string `json:"image"`
}

type extractResponse struct {
	Text string `json:"text"`
}

func (e *HTTPExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", apierror.NewAPIError(apierror.ErrInvalidInput, "receipt image is empty", nil)
	}

	payload, err := request.ToJsonReq(extractRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload.Bytes()))
	if err != nil {
		return "", err
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	var resp extractResponse
	if _, err := request.Call(req, &resp); err != nil {
		return "", apierror.NewAPIError(apierror.ErrUpstream, "text recognition failed", err.Error())
	}
	if resp.Text == "" {
		return "", errors.New("text recognition returned no text")
	}
	return resp.Text, nil
}

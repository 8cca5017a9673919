// Package messaging delivers templated customer messages through an HTTP
// messaging provider.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/blnkfinance/payrec/internal/request"
	"github.com/ttacon/libphonenumber"
)

const (
	TemplateReceiptReceived  = "receipt_received"
	TemplateReceiptConfirmed = "receipt_confirmed"
	TemplateReceiptRejected  = "receipt_rejected"
	TemplateCashRecorded     = "cash_payment_recorded"
)

var (
	ErrNotConfigured  = errors.New("messaging provider is not configured")
	ErrInvalidContact = errors.New("contact is not a valid phone number")
)

type Message struct {
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NormalizeContact returns phone in E.164 form, reading national numbers in region.
func NormalizeContact(phone, region string) (string, error) {
	p, err := libphonenumber.Parse(phone, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContact, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidContact, phone)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

type HTTPSender struct {
	url    string
	token  string
	region string
}

func NewHTTPSender(url, token, region string) *HTTPSender {
	return &HTTPSender{url: url, token: token, region: region}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if s.url == "" {
		return ErrNotConfigured
	}

	to, err := NormalizeContact(msg.To, s.region)
	if err != nil {
		return err
	}
	msg.To = to

	payload, err := request.ToJsonReq(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, payload)
	if err != nil {
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	_, err = request.Call(req, nil)
	return err
}

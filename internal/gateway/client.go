// Package gateway builds signed requests for the hosted card-payment
// provider. The provider authenticates requests with an HMAC over a
// fixed-order concatenation of fields; reordering any field produces a
// rejected signature.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/halver/shopcore/internal/models"
)

// Config holds the active gateway credentials
type Config struct {
	BaseURL    string
	MerchantID string
	Secret     string
	ReturnURL  string
	ErrorURL   string
}

// Client builds provider requests. It never talks to the provider
// directly: the customer's browser submits the redirect artifact.
type Client struct {
	cfg Config
}

// NewClient creates new gateway Client instance
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Param is a single provider request field. Order matters.
type Param struct {
	Name  string
	Value string
}

// Session is an initiated payment session: the ordered request fields,
// the computed signature and the self-submitting redirect artifact.
type Session struct {
	PaymentID   string
	RedirectURL string
	Params      []Param
	HTML        string
}

// redirect artifact, submits itself on load
var redirectTmpl = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
{{- range .Params}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

// Configured reports whether the required credentials are present
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.MerchantID != "" && c.cfg.Secret != ""
}

// Initiate builds the signed hosted-payment request for an order
func (c *Client) Initiate(order *models.Order, paymentID string) (*Session, error) {
	if !c.Configured() {
		return nil, models.ErrGatewayNotConfigured
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	params := c.buildParams(order, paymentID, ts)
	params = append(params, Param{Name: "signature", Value: c.sign(params)})

	action := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/hosted/pay"

	var sb strings.Builder
	err := redirectTmpl.Execute(&sb, struct {
		Action string
		Params []Param
	}{Action: action, Params: params})
	if err != nil {
		return nil, err
	}

	return &Session{
		PaymentID:   paymentID,
		RedirectURL: action,
		Params:      params,
		HTML:        sb.String(),
	}, nil
}

// buildParams returns the provider request fields in the mandated order.
// The order is part of the provider contract, do not sort or reorder.
func (c *Client) buildParams(order *models.Order, paymentID, ts string) []Param {
	return []Param{
		{Name: "merchant_id", Value: c.cfg.MerchantID},
		{Name: "track_id", Value: paymentID},
		{Name: "amt", Value: strconv.FormatInt(order.TotalCents, 10)},
		{Name: "currency", Value: order.Currency},
		{Name: "order_ref", Value: order.Number},
		{Name: "success_url", Value: c.cfg.ReturnURL},
		{Name: "error_url", Value: c.cfg.ErrorURL},
		{Name: "ts", Value: ts},
	}
}

// sign computes the provider MAC: HMAC-SHA256 over the field values
// joined with "|" in request order, hex encoded.
func (c *Client) sign(params []Param) string {
	values := make([]string, 0, len(params))
	for _, p := range params {
		values = append(values, p.Value)
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.Secret))
	mac.Write([]byte(strings.Join(values, "|")))

	return hex.EncodeToString(mac.Sum(nil))
}

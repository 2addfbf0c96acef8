package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/nuturetable/nuturetable/internal/model"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

// Client sends transactional mail through the Postmark HTTP API.
type Client struct {
	serverToken  string
	fromEmail    string
	supportEmail string
	apiURL       string
	httpClient   *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail, supportEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken:  serverToken,
		fromEmail:    fromEmail,
		supportEmail: supportEmail,
		apiURL:       defaultAPIURL,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendInquiry forwards a support inquiry to the support mailbox with the
// user's address as Reply-To.
func (c *Client) SendInquiry(ctx context.Context, q model.Inquiry) error {
	subject := fmt.Sprintf("[%s] %s", q.Category, q.Title)
	text := fmt.Sprintf("Inquiry #%d from %s (user %d)\n\n%s", q.ID, q.Email, q.UserID, q.Content)
	body := fmt.Sprintf(
		`<p>Inquiry #%d from <a href="mailto:%s">%s</a> (user %d)</p><p>%s</p>`,
		q.ID, html.EscapeString(q.Email), html.EscapeString(q.Email), q.UserID, html.EscapeString(q.Content),
	)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       c.supportEmail,
		ReplyTo:  q.Email,
		Subject:  subject,
		HtmlBody: body,
		TextBody: text,
		Tag:      "inquiry",
	})
}

// SendInquiryReceipt confirms to the user that their inquiry was received.
func (c *Client) SendInquiryReceipt(ctx context.Context, q model.Inquiry) error {
	text := fmt.Sprintf("We received your inquiry \"%s\" and will reply to this address.", q.Title)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       q.Email,
		Subject:  "We received your inquiry",
		HtmlBody: "<p>" + html.EscapeString(text) + "</p>",
		TextBody: text,
		Tag:      "inquiry-receipt",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

// Package email sends transactional mail through a Sendinblue-compatible
// HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAPIURL is the Sendinblue v3 SMTP endpoint.
const DefaultAPIURL = "https://api.sendinblue.com/v3/smtp/email"

// ErrNoRecipients is returned by Send when the email has no recipient.
var ErrNoRecipients = errors.New("email has no recipients")

// Contact is an address with an optional display name.
type Contact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Config configures a Client.
type Config struct {
	APIURL  string
	APIKey  string
	Sender  Contact
	Timeout time.Duration
}

// Client talks to the provider API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	sender     Contact
}

// NewClient returns a Client. Outbound requests are traced with otelhttp.
func NewClient(cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		apiURL: apiURL,
		apiKey: cfg.APIKey,
		sender: cfg.Sender,
	}
}

// SendHTML sends a single HTML email from the configured sender to one recipient.
func (c *Client) SendHTML(ctx context.Context, to Contact, subject, html string) (string, error) {
	return c.NewEmail().To(to).WithSubject(subject).WithHTML(html).Send(ctx)
}

// NewEmail starts a message from the client's configured sender.
func (c *Client) NewEmail() *Email {
	return &Email{client: c, Sender: c.sender}
}

// Email is a single outgoing message.
type Email struct {
	client *Client

	Sender     Contact
	Recipients []Contact
	Subject    string
	HTML       string
}

// From overrides the sender.
func (e *Email) From(sender Contact) *Email {
	e.Sender = sender
	return e
}

// To adds a recipient.
func (e *Email) To(recipient Contact) *Email {
	e.Recipients = append(e.Recipients, recipient)
	return e
}

// WithSubject sets the subject line.
func (e *Email) WithSubject(subject string) *Email {
	e.Subject = subject
	return e
}

// WithHTML sets the HTML body.
func (e *Email) WithHTML(html string) *Email {
	e.HTML = html
	return e
}

type sendRequest struct {
	Sender      Contact   `json:"sender"`
	To          []Contact `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

// SendError is a non-201 reply from the provider.
type SendError struct {
	Status  int
	Message string
}

func (e *SendError) Error() string {
	return "Failed to send email: " + e.Message
}

// Send delivers the email and returns the provider's message id.
func (e *Email) Send(ctx context.Context) (string, error) {
	if len(e.Recipients) == 0 {
		return "", ErrNoRecipients
	}

	body, err := json.Marshal(sendRequest{
		Sender:      e.Sender,
		To:          e.Recipients,
		Subject:     e.Subject,
		HTMLContent: e.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.client.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", e.client.apiKey)

	resp, err := e.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read email response: %w", err)
	}

	var decoded sendResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusCreated {
		msg := decoded.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return "", &SendError{Status: resp.StatusCode, Message: msg}
	}
	return decoded.MessageID, nil
}

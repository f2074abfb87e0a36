package sms

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// Client sends text messages through an HTTP SMS gateway. A circuit
// breaker stops hammering the gateway during an outage; while the circuit
// is open every send fails immediately and the dispatcher degrades the
// outcome instead of blocking the business operation.
// Implements notification.SMSProvider.
type Client struct {
	http   *resty.Client
	apiKey string
	sender string
	cb     *gobreaker.CircuitBreaker
}

// NewClient creates an SMS gateway client. baseURL is the gateway endpoint,
// sender is the registered sender id shown to recipients.
func NewClient(baseURL, apiKey, sender string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	st := gobreaker.Settings{
		Name:        "SMSGateway",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("[SMS] CircuitBreaker[%s] state changed from %s to %s", name, from, to)
		},
	}

	return &Client{
		http:   httpClient,
		apiKey: apiKey,
		sender: sender,
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// Send delivers one message. The recipient must already be in
// international format.
func (c *Client) Send(ctx context.Context, to, message string) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.apiKey).
			SetBody(sendRequest{To: to, From: c.sender, Message: message}).
			Post("/v1/messages")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
			return nil, fmt.Errorf("sms gateway status: %d", resp.StatusCode())
		}
		return nil, nil
	})
	return err
}

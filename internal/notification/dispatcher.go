package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"sync"
	"time"
)

var (
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrProviderUnavailable = errors.New("notification provider unavailable")
)

// Outcome of one dispatch attempt.
type Outcome string

const (
	// OutcomeSent means the channel confirmed delivery.
	OutcomeSent Outcome = "sent"
	// OutcomeAcceptedDegraded means the request was accepted but the
	// channel could not confirm delivery. Never fatal for the caller.
	OutcomeAcceptedDegraded Outcome = "accepted_degraded"
	// OutcomeFailed means the request itself was malformed. Not retried.
	OutcomeFailed Outcome = "failed"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Result is the outcome of a single dispatch.
type Result struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
}

// Failure is one failed recipient in a broadcast summary.
type Failure struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// Summary aggregates the per-recipient outcomes of a broadcast.
type Summary struct {
	SuccessCount int       `json:"success_count"`
	Failures     []Failure `json:"failures,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// EmailProvider delivers a single email.
type EmailProvider interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSProvider delivers a single text message.
type SMSProvider interface {
	Send(ctx context.Context, to, message string) error
}

// sendAttempts bounds retries against a provider before the dispatch is
// reported as degraded.
const sendAttempts = 2

// Dispatcher delivers notifications through external channels, isolating
// callers from provider failures: a channel outage degrades the outcome,
// it never fails the business operation that triggered the send.
type Dispatcher struct {
	email         EmailProvider
	sms           SMSProvider
	countryPrefix string
	timeout       time.Duration
}

// NewDispatcher creates a dispatcher. countryPrefix is the international
// prefix used to normalize local phone numbers (e.g. "+254"); timeout
// bounds each provider call.
func NewDispatcher(email EmailProvider, sms SMSProvider, countryPrefix string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		email:         email,
		sms:           sms,
		countryPrefix: countryPrefix,
		timeout:       timeout,
	}
}

// SendEmail dispatches one email. A malformed recipient fails fast; a
// provider failure after bounded retries yields OutcomeAcceptedDegraded
// with a nil error.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) (Outcome, error) {
	if _, err := mail.ParseAddress(to); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}

	err := d.attempt(ctx, func(callCtx context.Context) error {
		return d.email.Send(callCtx, to, subject, body)
	})
	if err != nil {
		log.Printf("[Dispatcher] Email to %s degraded: %v", to, err)
		return OutcomeAcceptedDegraded, nil
	}
	return OutcomeSent, nil
}

// SendSMS dispatches one text message. The recipient is normalized to
// international format before dispatch.
func (d *Dispatcher) SendSMS(ctx context.Context, to, message string) (Outcome, error) {
	normalized, err := NormalizePhone(to, d.countryPrefix)
	if err != nil {
		return OutcomeFailed, err
	}

	err = d.attempt(ctx, func(callCtx context.Context) error {
		return d.sms.Send(callCtx, normalized, message)
	})
	if err != nil {
		log.Printf("[Dispatcher] SMS to %s degraded: %v", normalized, err)
		return OutcomeAcceptedDegraded, nil
	}
	return OutcomeSent, nil
}

// Broadcast sends the same message to every recipient concurrently and
// aggregates the outcomes. An empty recipient list is a success, not an
// error.
func (d *Dispatcher) Broadcast(ctx context.Context, channel Channel, recipients []string, subject, body string) Summary {
	if len(recipients) == 0 {
		return Summary{Message: "no recipients, nothing to send"}
	}

	results := make([]Result, len(recipients))
	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			var outcome Outcome
			var err error
			switch channel {
			case ChannelSMS:
				outcome, err = d.SendSMS(ctx, recipient, body)
			default:
				outcome, err = d.SendEmail(ctx, recipient, subject, body)
			}
			results[i] = Result{Channel: channel, Recipient: recipient, Outcome: outcome}
			if err != nil {
				results[i].Reason = err.Error()
			}
		}(i, recipient)
	}
	wg.Wait()

	summary := Summary{}
	for _, res := range results {
		if res.Outcome == OutcomeFailed {
			summary.Failures = append(summary.Failures, Failure{Recipient: res.Recipient, Reason: res.Reason})
			continue
		}
		summary.SuccessCount++
	}
	summary.Message = fmt.Sprintf("%d of %d accepted", summary.SuccessCount, len(recipients))
	return summary
}

// attempt runs call against the provider with a per-call timeout, retrying
// a bounded number of times.
func (d *Dispatcher) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	var lastErr error
	for i := 1; i <= sendAttempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		lastErr = call(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

package push

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/notekeep/notekeep-backend/models"
	"github.com/notekeep/notekeep-backend/util"
)

// Outcome classifies one delivery attempt to one subscription.
type Outcome int

// Possible values for Outcome
const (
	// Delivered: the push service accepted the message.
	Delivered Outcome = iota
	// TransientFailure: the attempt failed but the endpoint may recover
	// (5xx, timeouts, connection errors). The subscription stays active
	// for future batches.
	TransientFailure
	// PermanentFailure: the push service says this subscription can never
	// succeed again. The caller should quarantine it.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient failure"
	case PermanentFailure:
		return "permanent failure"
	}
	return "unknown"
}

// Default bound on a single outbound delivery call.
const defaultTimeout = 10 * time.Second

// TTL advertised to the push service, in seconds. A daily reminder is
// stale after a day.
const messageTTL = 60 * 60 * 24

// httpClient is the outbound HTTP seam; it matches webpush.HTTPClient
// so tests can stub the push service.
type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Sender performs the Web Push protocol work for one (subscription,
// message) pair: payload encryption under the subscription's keys and
// VAPID signing with the server key pair, carried out by webpush-go.
// It holds no mutable state and is safe for concurrent use.
type Sender struct {
	vapidPublicKey  string
	vapidPrivateKey string
	subscriber      string // contact for the VAPID sub claim
	Timeout         time.Duration
	client          httpClient
}

// MakeSenderFromEnv initializes a Sender from VAPID_PRIVATE_KEY,
// VAPID_PUBLIC_KEY and VAPID_SUBSCRIBER. Missing or undecodable keys
// fail here, at startup, rather than at the first delivery attempt.
func MakeSenderFromEnv() (*Sender, error) {
	varErrs := util.Errors{}
	s := &Sender{
		vapidPrivateKey: util.RequireEnv("VAPID_PRIVATE_KEY", &varErrs),
		vapidPublicKey:  util.RequireEnv("VAPID_PUBLIC_KEY", &varErrs),
		subscriber:      util.RequireEnv("VAPID_SUBSCRIBER", &varErrs),
		Timeout:         defaultTimeout,
	}
	if len(varErrs) > 0 {
		return nil, varErrs
	}
	if _, err := base64.RawURLEncoding.DecodeString(s.vapidPrivateKey); err != nil {
		return nil, fmt.Errorf("VAPID_PRIVATE_KEY is not valid base64url: %v", err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(s.vapidPublicKey); err != nil {
		return nil, fmt.Errorf("VAPID_PUBLIC_KEY is not valid base64url: %v", err)
	}
	return s, nil
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (s *Sender) PublicKey() string {
	return s.vapidPublicKey
}

func (s *Sender) timeout() time.Duration {
	if s.Timeout != 0 {
		return s.Timeout
	}
	return defaultTimeout
}

// Deliver sends one message to one subscription and classifies the
// result. It has no side effects beyond the outbound call; acting on
// the outcome is the caller's job, which keeps retry policy orthogonal
// to protocol mechanics.
func (s *Sender) Deliver(ctx context.Context, sub models.Subscription, msg models.Message) Outcome {
	payload, err := msg.Payload()
	if err != nil {
		log.Printf("Could not encode payload for subscription %d: %v", sub.ID, err)
		return TransientFailure
	}
	recipient := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	resp, err := webpush.SendNotificationWithContext(ctx, payload, recipient, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.vapidPublicKey,
		VAPIDPrivateKey: s.vapidPrivateKey,
		TTL:             messageTTL,
	})
	if err != nil {
		// Timeouts and connection failures: the endpoint may come back.
		log.Printf("Delivery to subscription %d failed: %v", sub.ID, err)
		return TransientFailure
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

// classifyStatus maps a push service response to an outcome. 400, 404,
// 410 and 413 mean the subscription will never work again (malformed,
// gone, expired, payload too large); any other non-2xx is worth
// retrying on a later batch.
func classifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Delivered
	case status == http.StatusBadRequest,
		status == http.StatusNotFound,
		status == http.StatusGone,
		status == http.StatusRequestEntityTooLarge:
		return PermanentFailure
	default:
		return TransientFailure
	}
}

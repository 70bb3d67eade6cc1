package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a device token is no longer valid (410 Gone).
var ErrExpired = errors.New("device token expired")

// Sender delivers one notification to one device token.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WebPushSender sends through the Web Push protocol. Device tokens are
// browser push subscriptions serialized as JSON.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

// NewWebPushSender creates a sender signing with the given VAPID keys.
// subscriber is a mailto: or https: contact for the push service.
func NewWebPushSender(publicKey, privateKey, subscriber string) *WebPushSender {
	return &WebPushSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     http.DefaultClient,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *WebPushSender) VAPIDPublicKey() string {
	return s.publicKey
}

// ParseSubscription decodes a device token into a push subscription.
func ParseSubscription(token string) (*webpush.Subscription, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return nil, errors.New("decode subscription: missing endpoint or keys")
	}
	return &sub, nil
}

func (s *WebPushSender) Send(ctx context.Context, token, title, body string) error {
	sub, err := ParseSubscription(token)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Payload{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, sub, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// LogSender only logs notifications. It stands in when no push transport
// is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, token, title, body string) error {
	s.Logger.Info("push notification", "token", abbreviate(token), "title", title, "body", body)
	return nil
}

func abbreviate(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}

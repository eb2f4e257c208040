package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gopkg.in/gomail.v2"

	"pricetags/internal/core/apperror"
)

// GmailTransport sends through the Gmail API as the sender, using a service
// account with domain-wide delegation.
type GmailTransport struct {
	svc *gmail.Service
}

// NewGmailTransport builds the Gmail client from the service account JSON key.
func NewGmailTransport(ctx context.Context, credentialsJSON []byte, sender string) (*GmailTransport, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, apperror.NewConfig("invalid service account credentials").WithCause(err)
	}
	cfg.Subject = sender

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailTransport{svc: svc}, nil
}

// Deliver implements Transport.
func (t *GmailTransport) Deliver(ctx context.Context, to string, msg *gomail.Message) error {
	raw, err := Encode(msg)
	if err != nil {
		return apperror.NewDelivery(to, err)
	}

	_, err = t.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return apperror.NewDelivery(to, err)
	}
	return nil
}

// Encode renders msg as base64url MIME, the Gmail API raw format.
func Encode(msg *gomail.Message) (string, error) {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// SMTPTransport sends through an SMTP relay.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

// NewSMTPTransport creates an SMTP transport.
func NewSMTPTransport(host string, port int, user, password string) *SMTPTransport {
	return &SMTPTransport{dialer: gomail.NewDialer(host, port, user, password)}
}

// Deliver implements Transport.
func (t *SMTPTransport) Deliver(ctx context.Context, to string, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return apperror.NewDelivery(to, err)
	}
	if err := t.dialer.DialAndSend(msg); err != nil {
		return apperror.NewDelivery(to, err)
	}
	return nil
}

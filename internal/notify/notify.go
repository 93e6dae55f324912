// Package notify abstracts the outbound message transports. Delivery
// confirmation is never observed; every send is fire-and-forget from the
// caller's perspective.
package notify

import (
	"context"
	"log"
)

// SMSSender hands a composed text message to an SMS transport.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// PushSender delivers a push payload to an account.
type PushSender interface {
	SendPush(ctx context.Context, accountID, title, body string) error
}

// LogSMS is the default transport when no SMS provider is configured. It
// records the handoff so the dispatch path stays observable in dev.
type LogSMS struct{}

func (LogSMS) SendSMS(ctx context.Context, phone, body string) error {
	log.Printf("notify: sms to %s: %s", phone, body)
	return nil
}

// LogPush is the default push transport when no provider is configured.
type LogPush struct{}

func (LogPush) SendPush(ctx context.Context, accountID, title, body string) error {
	log.Printf("notify: push to %s: %s: %s", accountID, title, body)
	return nil
}

// Package notify delivers short text alerts to external channels.
package notify

import (
	"context"
	"errors"
)

// Notifier delivers a text message through a specific channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
	// Type returns the notifier type identifier ("gateway", "webhook", ...).
	Type() string
}

// Compile-time interface guards.
var (
	_ Notifier = Nop{}
	_ Notifier = Multi(nil)
	_ Notifier = Func(nil)
)

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
func (Nop) Type() string                         { return "nop" }

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, text string) error

func (f Func) Notify(ctx context.Context, text string) error { return f(ctx, text) }
func (f Func) Type() string                                  { return "func" }

// Multi fans a message out to every notifier in order. Delivery continues
// past failures; the joined error reports every channel that failed.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Type() string { return "multi" }

// Package notify delivers security notifications by email without holding
// up the request that triggered them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/obs"
)

// Kind identifies a notification template.
type Kind string

const (
	KindMFACode               Kind = "mfa_code"
	KindNewDevice             Kind = "new_device"
	KindTempDisabled          Kind = "account_temp_disabled"
	KindSuspended             Kind = "account_suspended"
	KindSuspiciousLogin       Kind = "suspicious_login_blocked"
	KindTimezoneMismatch      Kind = "timezone_mismatch"
	KindTimezoneMismatchAdmin Kind = "timezone_mismatch_admin"
	KindOutOfHours            Kind = "out_of_hours"
	KindOutOfHoursAdmin       Kind = "out_of_hours_admin"
)

type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

var ErrNoRecipient = errors.New("notify: message has no recipient")

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Notifier is what the login flow depends on. Dispatcher implements it.
type Notifier interface {
	Notify(m Message) bool
}

// Dispatcher queues messages and sends them from one worker goroutine.
type Dispatcher struct {
	Sender      Sender
	Logger      *slog.Logger
	Metrics     *obs.Metrics
	SendTimeout time.Duration

	queue   chan Message
	stopped atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewDispatcher(sender Sender, logger *slog.Logger, metrics *obs.Metrics, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Sender:      sender,
		Logger:      logger,
		Metrics:     metrics,
		SendTimeout: 15 * time.Second,
		queue:       make(chan Message, queueSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
		d.Logger.Info("notification dispatcher started")
	})
}

// Notify queues m without blocking. Messages without a recipient and
// messages arriving while the queue is full are dropped.
func (d *Dispatcher) Notify(m Message) bool {
	if m.To == "" {
		d.Metrics.Notification(string(m.Kind), "skipped")
		return false
	}
	if d.stopped.Load() {
		d.Metrics.Notification(string(m.Kind), "dropped")
		return false
	}
	select {
	case d.queue <- m:
		return true
	default:
		d.Metrics.Notification(string(m.Kind), "dropped")
		d.Logger.Warn("notification dropped", "kind", m.Kind, "reason", "queue full")
		return false
	}
}

// Stop sends whatever is still queued, then returns. It gives up when ctx
// ends.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopCh)
	})
	d.startOnce.Do(func() {
		go func() {
			defer close(d.doneCh)
			d.drain()
		}()
	})

	select {
	case <-d.doneCh:
		d.Logger.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)
	for {
		select {
		case m := <-d.queue:
			d.deliver(m)
		case <-d.stopCh:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case m := <-d.queue:
			d.deliver(m)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.SendTimeout)
	defer cancel()

	if err := d.Sender.Send(ctx, m); err != nil {
		d.Metrics.Notification(string(m.Kind), "failed")
		d.Logger.Error("notification failed", "kind", m.Kind, "to", m.To, "err", err)
		return
	}
	d.Metrics.Notification(string(m.Kind), "sent")
	d.Logger.Debug("notification sent", "kind", m.Kind, "to", m.To)
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no SMTP server is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	if m.To == "" {
		return ErrNoRecipient
	}
	s.Logger.InfoContext(ctx, "notification", "kind", m.Kind, "to", m.To, "subject", m.Subject)
	// Codes and unlock links are only visible at debug level.
	s.Logger.DebugContext(ctx, "notification body", "kind", m.Kind, "to", m.To, "body", m.Body)
	return nil
}

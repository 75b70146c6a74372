/*
notify.go - Notification dispatchers

PURPOSE:
  Implementations of schedule.Notifier. The scheduler treats delivery as
  fire-and-forget: nothing here can change placement state.

IMPLEMENTATIONS:
  Email  SMTP via gomail
  Log    writes the notification to the zap logger (dev, no SMTP configured)
  Async  wraps another notifier with a bounded queue and one worker

SEE ALSO:
  - schedule/notify.go: The Notifier interface
*/
package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// EMAIL
// =============================================================================

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is the part of gomail's dialer Email uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Email struct {
	sender Sender
	from   string
}

func NewEmail(cfg SMTPConfig) *Email {
	return &Email{
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// NewEmailWithSender is NewEmail with a custom transport.
func NewEmailWithSender(sender Sender, from string) *Email {
	return &Email{sender: sender, from: from}
}

func (e *Email) Notify(_ context.Context, n schedule.Notification) error {
	if n.Recipient == "" {
		return errors.New("notification has no recipient")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", n.Recipient)
	m.SetHeader("Subject", n.Subject)
	m.SetBody("text/plain", n.Message)
	return e.sender.DialAndSend(m)
}

// =============================================================================
// LOG
// =============================================================================

type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n schedule.Notification) error {
	l.logger.Info("notification",
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
		zap.String("message", n.Message))
	return nil
}

// =============================================================================
// ASYNC
// =============================================================================

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

// Async hands notifications to a single background worker. Notify returns as
// soon as the notification is queued. A full queue drops the notification
// with a warning. Close stops accepting work and waits for the queue to drain.
type Async struct {
	next   schedule.Notifier
	logger *zap.Logger
	queue  chan schedule.Notification

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next schedule.Notifier, size int, logger *zap.Logger) *Async {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan schedule.Notification, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(_ context.Context, n schedule.Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- n:
	default:
		a.logger.Warn("notification queue full, dropping", zap.String("recipient", n.Recipient))
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for n := range a.queue {
		// Delivery outlives the request that queued it.
		if err := a.next.Notify(context.Background(), n); err != nil {
			a.logger.Warn("notification delivery failed",
				zap.String("recipient", n.Recipient),
				zap.String("subject", n.Subject),
				zap.Error(err))
		}
	}
}

// Close drains the queue. It returns early with ctx's error if ctx ends first.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package events publishes review, rating and signup events to NATS after the
// owning transaction commits. Delivery is fire-and-forget.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectReviewCreated = "yamdb.review.created"
	SubjectReviewUpdated = "yamdb.review.updated"
	SubjectReviewDeleted = "yamdb.review.deleted"
	SubjectRatingUpdated = "yamdb.rating.updated"
	// SubjectUserSignup carries the confirmation code for a new or returning
	// account so a mailer can deliver it.
	SubjectUserSignup = "yamdb.user.signup"
)

// Event is the envelope sent on every subject.
type Event struct {
	EventID    string         `json:"event_id"`
	Subject    string         `json:"subject"`
	ActorID    int64          `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

type publishConn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends events over a NATS connection. A nil *Publisher and one
// built without a connection are no-ops.
type Publisher struct {
	nc  publishConn
	log *zap.Logger
}

// New wraps nc. Passing a nil connection yields a no-op publisher.
func New(nc *nats.Conn, log *zap.Logger) *Publisher {
	if nc == nil {
		return newPublisher(nil, log)
	}
	return newPublisher(nc, log)
}

func newPublisher(nc publishConn, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{nc: nc, log: log}
}

// Publish emits an event. Failures are logged and never reach the caller.
func (p *Publisher) Publish(subject string, actorID int64, props map[string]any) {
	if p == nil || p.nc == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		Subject:    subject,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Options configures the NATS connection.
type Options struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Connect dials NATS without retrying the initial connect so startup fails
// fast on a bad URL. Reconnects after that follow opts.
func Connect(opts Options, log *zap.Logger) (*nats.Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = 5
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("events: nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("events: nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

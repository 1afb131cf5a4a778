// Package notify implements best-effort notification dispatch.
//
// A dispatch records the job in a Postgres outbox row and publishes it to the
// EVENT_NOTIFY Redis channel consumed by the mailer. A failed publish leaves
// the row pending; the Sweeper re-publishes pending rows on a cron schedule.
// Nothing in this package ever fails the workflow that called it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel the mailer subscribes to.
const Channel = "EVENT_NOTIFY"

// Job is one notification to deliver to one recipient.
type Job struct {
	RecipientUserID string          `json:"recipientUserId"`
	TemplateType    string          `json:"templateType"`
	RelatedID       string          `json:"relatedId"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// Dispatcher is the boundary the workflow calls through. Implementations must
// treat delivery as fire-and-forget: errors are for the caller to log, never
// to act on.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Pending is an outbox row whose publish has not been confirmed yet.
type Pending struct {
	ID  string
	Job Job
}

// Outbox is the persistence surface for recorded notification jobs.
type Outbox interface {
	AddNotification(ctx context.Context, job Job) (id string, err error)
	MarkNotificationPublished(ctx context.Context, id string) error
	ListPendingNotifications(ctx context.Context, limit int) ([]Pending, error)
}

// Publisher abstracts the pub/sub transport.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes over a go-redis client.
type RedisPublisher struct{ rdb *redis.Client }

// NewRedisPublisher wraps rdb as a Publisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// envelope is the wire shape published to Channel.
type envelope struct {
	ID string `json:"id"`
	Job
}

// OutboxDispatcher is the production Dispatcher: outbox row first, then a
// Redis publish. The two-step order means a crash between the steps degrades
// to a pending row the Sweeper recovers, never to a lost notification.
type OutboxDispatcher struct {
	outbox Outbox
	pub    Publisher
}

// NewOutboxDispatcher constructs an OutboxDispatcher.
func NewOutboxDispatcher(outbox Outbox, pub Publisher) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: outbox, pub: pub}
}

// Dispatch records and publishes one job. Only the outbox write can return an
// error; a publish failure leaves the row pending and is logged here.
func (d *OutboxDispatcher) Dispatch(ctx context.Context, job Job) error {
	id, err := d.outbox.AddNotification(ctx, job)
	if err != nil {
		return fmt.Errorf("outbox add: %w", err)
	}

	event, _ := json.Marshal(envelope{ID: id, Job: job})
	if err := d.pub.Publish(ctx, Channel, event); err != nil {
		slog.Warn("notification publish failed, row left pending", "id", id, "err", err)
		return nil
	}

	if err := d.outbox.MarkNotificationPublished(ctx, id); err != nil {
		// The sweeper will publish it a second time; the mailer dedups by id.
		slog.Warn("mark notification published failed", "id", id, "err", err)
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

const sweepBatchSize = 100

// Sweeper wraps robfig/cron and manages the outbox recovery loop.
type Sweeper struct {
	cron   *cron.Cron
	outbox Outbox
	pub    Publisher
	spec   string // cron spec, e.g. "@every 5m"
}

// NewSweeper creates a Sweeper that fires every intervalMinutes minutes.
func NewSweeper(outbox Outbox, pub Publisher, intervalMinutes int) *Sweeper {
	return &Sweeper{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		outbox: outbox,
		pub:    pub,
		spec:   fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so rows stranded by a previous crash are recovered without
// waiting for the first tick.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[sweeper] Cron started — spec: %s", s.spec)

	go s.Sweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Sweeper) Stop() {
	s.cron.Stop()
	log.Println("[sweeper] Cron stopped")
}

// Sweep publishes every pending outbox row and marks the successes. Rows
// whose publish fails again stay pending for the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	pending, err := s.outbox.ListPendingNotifications(ctx, sweepBatchSize)
	if err != nil {
		log.Printf("[sweeper] ListPendingNotifications error: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	var published int
	for _, p := range pending {
		event, _ := json.Marshal(envelope{ID: p.ID, Job: p.Job})
		if err := s.pub.Publish(ctx, Channel, event); err != nil {
			log.Printf("[sweeper] Publish error for %s: %v — will retry next tick", p.ID, err)
			continue
		}
		if err := s.outbox.MarkNotificationPublished(ctx, p.ID); err != nil {
			log.Printf("[sweeper] MarkNotificationPublished error for %s: %v", p.ID, err)
			continue
		}
		published++
	}

	log.Printf("[sweeper] Sweep complete — pending=%d published=%d", len(pending), published)
}

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/config"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/resilience"
)

// payload is the JSON body POSTed for each lifecycle event.
type payload struct {
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Rows      uint16 `json:"rows,omitempty"`
	Cols      uint16 `json:"cols,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Notifier POSTs lifecycle events to a configured URL. It implements
// terminal.LifecycleSink: OnEvent enqueues without blocking, a single worker
// delivers with retries, and a circuit breaker stops hammering a dead
// endpoint. Overflowed events are dropped and counted, never queued
// unboundedly.
type Notifier struct {
	url     string
	client  *retryablehttp.Client
	breaker *resilience.Breaker
	log     *logging.Logger
	metrics *monitoring.Metrics

	queue chan payload

	mu      sync.Mutex
	dropped uint64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a notifier from configuration. Returns nil when no URL is
// configured; callers treat a nil notifier as disabled.
func New(cfg config.WebhookConfig, log *logging.Logger, metrics *monitoring.Metrics) *Notifier {
	if cfg.URL == "" {
		return nil
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	n := &Notifier{
		url:    cfg.URL,
		client: client,
		breaker: resilience.New("webhook", resilience.Settings{
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("webhook breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		log:     log.Named("webhook"),
		metrics: metrics,
		queue:   make(chan payload, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go n.worker()
	return n
}

// OnEvent implements terminal.LifecycleSink. Never blocks: a full queue
// drops the event and counts the loss.
func (n *Notifier) OnEvent(ev terminal.Event) {
	p := payload{
		SessionID: ev.SessionID.String(),
		Event:     string(ev.Kind),
		ExitCode:  ev.ExitCode,
		Reason:    ev.Reason,
		Rows:      ev.Rows,
		Cols:      ev.Cols,
		Timestamp: ev.Time.UTC().Format(time.RFC3339Nano),
	}

	select {
	case n.queue <- p:
	default:
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
		if n.metrics != nil {
			n.metrics.RecordWebhookDelivery("dropped")
		}
	}
}

// Dropped returns the number of events lost to queue overflow.
func (n *Notifier) Dropped() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Close stops the worker after the current delivery finishes. Queued events
// are discarded.
func (n *Notifier) Close() {
	n.stopOnce.Do(func() { close(n.stop) })
	<-n.done
}

func (n *Notifier) worker() {
	defer close(n.done)

	for {
		select {
		case <-n.stop:
			return
		case p := <-n.queue:
			n.deliver(p)
		}
	}
}

func (n *Notifier) deliver(p payload) {
	err := n.breaker.Do(func() error {
		return n.post(p)
	})

	switch {
	case err == nil:
		if n.metrics != nil {
			n.metrics.RecordWebhookDelivery("ok")
		}
	case err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests:
		if n.metrics != nil {
			n.metrics.RecordWebhookDelivery("skipped")
		}
	default:
		if n.metrics != nil {
			n.metrics.RecordWebhookDelivery("failed")
		}
		n.log.Warn("webhook delivery failed",
			zap.String("session", p.SessionID),
			zap.String("event", p.Event),
			zap.Error(err),
		)
	}
}

func (n *Notifier) post(p payload) error {
	body, err := sonic.Marshal(p)
	if err != nil {
		return err
	}

	// Bound the whole delivery including retries.
	total := n.client.HTTPClient.Timeout * time.Duration(n.client.RetryMax+1)
	ctx, cancel := context.WithTimeout(context.Background(), total)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &DeliveryError{Status: resp.StatusCode}
	}
	return nil
}

// DeliveryError reports a non-2xx webhook response.
type DeliveryError struct {
	Status int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook endpoint returned %d", e.Status)
}

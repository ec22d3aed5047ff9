package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/projectplus/apiserver/internal/metrics"
	"github.com/projectplus/apiserver/internal/mq"
	"github.com/rs/zerolog"
)

const sendTimeout = 30 * time.Second

// Dispatcher hands a job off for delivery without waiting for the mail
// server.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Deliver renders job and sends it with mailer, recording the outcome.
func Deliver(ctx context.Context, mailer Mailer, job Job) error {
	email, err := Render(job)
	if err == nil {
		err = mailer.Send(ctx, email)
	}
	metrics.RecordEmail(job.Kind, err)
	return err
}

// AsyncDispatcher delivers each job on its own goroutine from the API
// process. Failures are logged and dropped.
type AsyncDispatcher struct {
	mailer Mailer
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(mailer Mailer, logger zerolog.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{mailer: mailer, logger: logger}
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, job Job) error {
	if _, err := Render(job); err != nil {
		return err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the request, which ends before delivery.
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := Deliver(ctx, d.mailer, job); err != nil {
			d.logger.Error().Err(err).Str("kind", job.Kind).Str("to", job.To).Msg("deliver email")
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher publishes jobs to a mail channel consumed by the worker.
type QueueDispatcher struct {
	backend mq.Backend
	channel string
}

func NewQueueDispatcher(backend mq.Backend, channel string) *QueueDispatcher {
	return &QueueDispatcher{backend: backend, channel: channel}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := d.backend.Publish(ctx, d.channel, data, map[string]string{"kind": job.Kind}); err != nil {
		return fmt.Errorf("publish %s email: %w", job.Kind, err)
	}
	return nil
}

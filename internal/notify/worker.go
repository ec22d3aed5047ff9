package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/projectplus/apiserver/internal/mq"
	"github.com/rs/zerolog"
)

// Worker consumes the mail channel and delivers each job. A delivery error
// nacks the message so the broker can redeliver it.
type Worker struct {
	backend mq.Backend
	channel string
	mailer  Mailer
	logger  zerolog.Logger
}

func NewWorker(backend mq.Backend, channel string, mailer Mailer, logger zerolog.Logger) *Worker {
	return &Worker{backend: backend, channel: channel, mailer: mailer, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("channel", w.channel).Msg("mail worker started")
	err := w.backend.Subscribe(ctx, w.channel, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// Malformed payloads can never succeed; ack them.
		w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("decode mail job")
		return nil
	}
	if err := Deliver(ctx, w.mailer, job); err != nil {
		w.logger.Warn().Err(err).Str("message_id", msg.ID).Str("kind", job.Kind).Msg("deliver email")
		return err
	}
	w.logger.Debug().Str("message_id", msg.ID).Str("kind", job.Kind).Msg("email delivered")
	return nil
}

package eventlogger

import (
	"context"
	"log/slog"
	"sync"
)

type Worker struct {
	eventCh chan Event
	logger  EventLogger
	onError func(Event, error)
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

type WorkerOption func(*Worker)

// OnError registers a hook called for every event that fails to save or
// is dropped because the buffer is full.
func OnError(fn func(Event, error)) WorkerOption {
	return func(w *Worker) { w.onError = fn }
}

func NewWorker(logger EventLogger, bufferSize int, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		eventCh: make(chan Event, bufferSize),
		logger:  logger,
		onError: func(Event, error) {},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining activity before shutdown", "remaining_events", len(w.eventCh))
				for len(w.eventCh) > 0 {
					w.save(context.Background(), <-w.eventCh)
				}
				return
			case event := <-w.eventCh:
				w.save(context.Background(), event)
			}
		}
	})
}

func (w *Worker) save(ctx context.Context, event Event) {
	if err := w.logger.Save(ctx, event); err != nil {
		slog.Error("failed to save activity", "error", err, "event_type", event.Type)
		w.onError(event, err)
	}
}

// Log queues event without blocking; it is dropped when the buffer is full.
func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		slog.Warn("activity channel full, dropping event", "event_type", event.Type)
		w.onError(event, ErrBufferFull)
	}
}

// Shutdown stops the worker after saving everything already queued.
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}

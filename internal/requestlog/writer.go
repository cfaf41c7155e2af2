// Package requestlog はリクエストログを非同期でDBに書く。
package requestlog

import (
	"context"
	"sync"
	"time"

	"boilerplate/internal/domain/model"
	"boilerplate/internal/logging"
	"boilerplate/internal/repository"
)

const (
	DefaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

// Writerはキューが満杯なら捨てる。リクエストを待たせない。
type Writer struct {
	repo  repository.RequestLogRepository
	log   logging.Logger
	queue chan model.RequestLog

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	// 捨てた件数の記録（metrics用）
	OnDrop func()
}

func NewWriter(repo repository.RequestLogRepository, size int, log logging.Logger) *Writer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Writer{
		repo:  repo,
		log:   log,
		queue: make(chan model.RequestLog, size),
		done:  make(chan struct{}),
	}
}

// Startは書き込み用のgoroutineを1本起動する
func (w *Writer) Start() {
	go w.run()
}

func (w *Writer) run() {
	defer close(w.done)
	for entry := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.repo.Create(ctx, entry); err != nil {
			w.log.Warn(ctx, "request log write failed", "path", entry.Path, "error", err)
		}
		cancel()
	}
}

// Emitはキューに積めたらtrue
func (w *Writer) Emit(entry model.RequestLog) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}

	select {
	case w.queue <- entry:
		return true
	default:
		w.log.Warn(context.Background(), "request log queue full, entry dropped", "path", entry.Path)
		if w.OnDrop != nil {
			w.OnDrop()
		}
		return false
	}
}

// Closeは受付を止めて残りを書き切る。ctxが先に切れたら諦める。
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

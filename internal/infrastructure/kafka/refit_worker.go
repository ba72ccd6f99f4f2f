package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/jitter"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// RefitWorker слушает топик каталога и переобучает рекомендательные движки
// после каждого завершённого инжеста. Переобучение идемпотентно, поэтому
// повторная доставка события безопасна.
type RefitWorker struct {
	reader *kafka.Reader
	recUC  usecase.RecommendationUC
	logger logger.Logger
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewRefitWorker(cfg *cfg.KafkaCfg, recUC usecase.RecommendationUC, logger logger.Logger) *RefitWorker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})

	return &RefitWorker{
		reader: reader,
		recUC:  recUC,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

func (w *RefitWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

func (w *RefitWorker) Stop() {
	close(w.stop)
	if err := w.reader.Close(); err != nil {
		w.logger.Warnf("kafka reader close failed: %v", err)
	}
	w.wg.Wait()
}

func (w *RefitWorker) run(ctx context.Context) {
	const (
		baseBackoff = time.Second
		maxBackoff  = 30 * time.Second
	)

	w.logger.Infof("Refit worker started, listening topic %s", w.reader.Config().Topic)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}

			sleepTime := jitter.ExponentialBackoff(baseBackoff, maxBackoff, attempt, jitter.DefaultJitter)
			attempt++
			w.logger.Warnf("kafka read failed, retrying in %v: %v", sleepTime, err)

			select {
			case <-time.After(sleepTime):
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			}
			continue
		}
		attempt = 0

		w.handleMessage(ctx, msg)
	}
}

func (w *RefitWorker) handleMessage(ctx context.Context, msg kafka.Message) {
	var event catalogUpdatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Warnf("malformed catalog event at offset %d skipped: %v", msg.Offset, err)
		return
	}

	w.logger.Infof("catalog updated (event_id=%s, products=%d), refitting engines", event.EventID, event.Products)

	if err := w.recUC.Refit(ctx); err != nil {
		// Событие уже закоммичено; следующий инжест всё равно пришлёт новое.
		w.logger.Errorf(err, "engine refit failed")
		return
	}
}

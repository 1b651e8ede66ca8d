package outbox

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/metrics"
	repo "fashionshop/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("fashionshop/outbox-relay")

type Publisher interface {
	Publish(ctx context.Context, e model.OutboxEvent) error
}

// PublisherFunc はKafkaを使わないときにハンドラを直接呼ぶ。
type PublisherFunc func(ctx context.Context, e model.OutboxEvent) error

func (f PublisherFunc) Publish(ctx context.Context, e model.OutboxEvent) error {
	return f(ctx, e)
}

type Options struct {
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
	// 確保した行を他のリレーに渡さない時間。配信がこれより長くかかると二重配信になる
	Lease time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.Lease <= 0 {
		o.Lease = 5 * time.Minute
	}
	return o
}

// Relay はコミット済みのoutbox行を配信する。
// 配信に失敗した行はattemptsを増やして次のポーリングで再送する（少なくとも1回配信）。
// 配信中はトランザクションを持たない。確保した行はLeaseの間だけ他のリレーから隠れる。
type Relay struct {
	tx   repo.TransactionManager
	pub  Publisher
	opts Options
}

func NewRelay(tx repo.TransactionManager, pub Publisher, opts Options) *Relay {
	return &Relay{tx: tx, pub: pub, opts: opts.withDefaults()}
}

// Run はctxが終わるまでポーリングする。
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx).Err(err).Msg("outbox relay batch failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce は1バッチ配信して、配信できた件数を返す。
// 結果の記録に失敗した行はLease切れ後に再送される。
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Relay.RunOnce")
	defer span.End()

	events, err := r.claim(ctx)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("outbox.claimed", len(events)))

	published := 0
	var firstErr error
	for _, e := range events {
		ok, err := r.deliver(ctx, e)
		if err != nil {
			logger.Error(ctx).Err(err).
				Str("event_id", e.EventID).
				Msg("outbox mark failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			published++
		}
	}
	return published, firstErr
}

func (r *Relay) claim(ctx context.Context) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.tx.WithinTx(ctx, func(tx repo.TxRepos) error {
		now := time.Now()
		var err error
		events, err = tx.Outbox().ClaimPending(ctx, r.opts.BatchSize, r.opts.MaxAttempts, now, now.Add(r.opts.Lease))
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// deliver は1件配信して結果を記録する。配信できたらtrue
func (r *Relay) deliver(ctx context.Context, e model.OutboxEvent) (bool, error) {
	if err := r.pub.Publish(ctx, e); err != nil {
		metrics.OutboxPublished.WithLabelValues(string(e.Type), "error").Inc()
		logger.Warn(ctx).Err(err).
			Str("event_id", e.EventID).
			Str("type", string(e.Type)).
			Int("attempts", e.Attempts+1).
			Msg("outbox publish failed")
		reason := err.Error()
		return false, r.tx.WithinTx(ctx, func(tx repo.TxRepos) error {
			return tx.Outbox().MarkFailed(ctx, e.ID, reason)
		})
	}

	at := time.Now()
	err := r.tx.WithinTx(ctx, func(tx repo.TxRepos) error {
		return tx.Outbox().MarkPublished(ctx, e.ID, at)
	})
	if err != nil {
		return false, err
	}
	metrics.OutboxPublished.WithLabelValues(string(e.Type), "ok").Inc()
	return true, nil
}

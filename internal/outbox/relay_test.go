package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/outbox"
	repo "fashionshop/internal/repository"
	"fashionshop/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvents(t *testing.T, s *memory.Store, types ...model.EventType) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		for i, typ := range types {
			e := model.OutboxEvent{EventID: string(rune('a' + i)), Type: typ, AggregateID: int64(i + 1), Payload: `{}`}
			if err := r.Outbox().Append(context.Background(), &e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRelay_RunOncePublishesInOrder(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced, model.EventProductRestocked, model.EventOrderStatusChanged)

	var got []model.EventType
	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		got = append(got, e.Type)
		return nil
	}), outbox.Options{})

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []model.EventType{model.EventOrderPlaced, model.EventProductRestocked, model.EventOrderStatusChanged}, got)

	for _, e := range s.Events() {
		assert.NotNil(t, e.PublishedAt)
	}

	// 配信済みは二度送らない
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, got, 3)
}

func TestRelay_FailedPublishIsRetried(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced, model.EventOrderPlaced)

	calls := map[int64]int{}
	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		calls[e.AggregateID]++
		if e.AggregateID == 1 && calls[1] <= 2 {
			return errors.New("broker unavailable")
		}
		return nil
	}), outbox.Options{MaxAttempts: 5})

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Nil(t, events[0].PublishedAt)
	assert.Equal(t, 1, events[0].Attempts)
	assert.Equal(t, "broker unavailable", events[0].LastError)
	assert.NotNil(t, events[1].PublishedAt)

	// 2回目も失敗、3回目で配信される
	_, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, s.Events()[0].PublishedAt)
	assert.Equal(t, 2, s.Events()[0].Attempts)
}

func TestRelay_GivesUpAfterMaxAttempts(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced)

	calls := 0
	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		calls++
		return errors.New("always down")
	}), outbox.Options{MaxAttempts: 2})

	for i := 0; i < 4; i++ {
		_, err := relay.RunOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, s.Events()[0].Attempts)
}

func TestRelay_BatchSize(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced, model.EventOrderPlaced, model.EventOrderPlaced)

	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		return nil
	}), outbox.Options{BatchSize: 2})

	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelay_StoreErrorRedeliversAfterLease(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced)
	s.FailNext("Outbox.MarkPublished", errors.New("conn reset"))

	calls := 0
	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		calls++
		return nil
	}), outbox.Options{Lease: 20 * time.Millisecond})

	n, err := relay.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Nil(t, s.Events()[0].PublishedAt)
	assert.NotNil(t, s.Events()[0].LockedUntil)

	// 確保中は取り直さない
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, calls)

	time.Sleep(30 * time.Millisecond)
	n, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, calls)
	assert.NotNil(t, s.Events()[0].PublishedAt)
	assert.Nil(t, s.Events()[0].LockedUntil)
}

// runWithin は止まったらテストを落とす
func runWithin(t *testing.T, d time.Duration, fn func() (int, error)) (int, error) {
	t.Helper()
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := fn()
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(d):
		t.Fatal("relay blocked")
		return 0, nil
	}
}

func TestRelay_PublisherCanWriteToStore(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventProductRestocked)

	// 通知ハンドラと同じく配信中に別トランザクションを開く
	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		if e.Type != model.EventProductRestocked {
			return nil
		}
		return s.WithinTx(ctx, func(r repo.TxRepos) error {
			follow := model.OutboxEvent{EventID: "follow", Type: model.EventOrderStatusChanged, AggregateID: 9, Payload: `{}`}
			return r.Outbox().Append(ctx, &follow)
		})
	}), outbox.Options{})

	n, err := runWithin(t, time.Second, func() (int, error) { return relay.RunOnce(context.Background()) })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events := s.Events()
	require.Len(t, events, 2)
	assert.NotNil(t, events[0].PublishedAt)
	assert.Nil(t, events[1].PublishedAt)

	n, err = runWithin(t, time.Second, func() (int, error) { return relay.RunOnce(context.Background()) })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelay_SecondRelaySkipsClaimedRows(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced, model.EventOrderPlaced)

	var other []int64
	second := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		other = append(other, e.AggregateID)
		return nil
	}), outbox.Options{})

	var secondRuns []int
	first := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		n, err := second.RunOnce(ctx)
		if err != nil {
			return err
		}
		secondRuns = append(secondRuns, n)
		return nil
	}), outbox.Options{BatchSize: 1})

	n, err := runWithin(t, time.Second, func() (int, error) { return first.RunOnce(context.Background()) })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 1件目はfirstが確保中なので、secondは2件目だけを配信する
	assert.Equal(t, []int{1}, secondRuns)
	assert.Equal(t, []int64{2}, other)
	for _, e := range s.Events() {
		assert.NotNil(t, e.PublishedAt)
	}
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	s := memory.NewStore()
	seedEvents(t, s, model.EventOrderPlaced)

	published := make(chan struct{}, 1)
	relay := outbox.NewRelay(s, outbox.PublisherFunc(func(ctx context.Context, e model.OutboxEvent) error {
		published <- struct{}{}
		return nil
	}), outbox.Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

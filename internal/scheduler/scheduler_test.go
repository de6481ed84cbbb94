// SPDX-License-Identifier: BSL-1.1

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotforge/pkg/eventbus"
	"github.com/slotforge/slotforge/internal/config"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(topic string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, topic)
}

func (f *fakePublisher) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == topic {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoop_AlertsAfterThreeConsecutiveFailures(t *testing.T) {
	events := &fakePublisher{}
	s := &Scheduler{events: events, logger: testLogger()}

	var calls int
	var mu sync.Mutex
	failUntilStopped := func(ctx context.Context, now time.Time) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return 0, assertError{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.loop(ctx, "test_loop", 5*time.Millisecond, failUntilStopped)

	require.Eventually(t, func() bool {
		return events.count(eventbus.TopicBackgroundAlert) >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	assert.GreaterOrEqual(t, events.count(eventbus.TopicBackgroundAlert), 1)
}

func TestLoop_SuccessResetsFailureStreak(t *testing.T) {
	events := &fakePublisher{}
	s := &Scheduler{events: events, logger: testLogger()}

	var mu sync.Mutex
	attempt := 0
	task := func(ctx context.Context, now time.Time) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		attempt++
		// Fail twice, succeed once, fail twice more, then succeed
		// forever: four failures in all, but the success in between
		// resets the streak, so it never reaches three in a row and no
		// alert should ever fire.
		if attempt <= 2 || attempt == 4 || attempt == 5 {
			return 0, assertError{}
		}
		return 1, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.loop(ctx, "test_loop", 5*time.Millisecond, task)

	time.Sleep(100 * time.Millisecond)
	cancel()

	assert.Equal(t, 0, events.count(eventbus.TopicBackgroundAlert))
}

func TestNew_SkipsNilLoops(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, config.BackgroundConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation with no configured loops")
	}
}

type assertError struct{}

func (assertError) Error() string { return "synthetic task failure" }

package liveness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Watcher samples a Prober on a schedule and notifies subscribers when the
// bot core goes online or offline. Request handlers keep calling the Prober
// directly; the watcher only feeds push updates and transition logs.
type Watcher struct {
	prober    Prober
	interval  time.Duration
	timeout   time.Duration
	scheduler gocron.Scheduler
	logger    *slog.Logger

	mu      sync.Mutex
	online  bool
	known   bool
	subs    map[int]chan bool
	nextSub int
	stopped bool
}

// NewWatcher creates a watcher. Call Start to begin sampling.
func NewWatcher(prober Prober, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger = logger.With("component", "liveness_watcher")

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(newGocronLogger(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Watcher{
		prober:    prober,
		interval:  interval,
		timeout:   interval,
		scheduler: s,
		logger:    logger,
		subs:      make(map[int]chan bool),
	}, nil
}

// Start schedules the heartbeat job, sampling once immediately.
func (w *Watcher) Start() error {
	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.sample),
		gocron.WithName("heartbeat-probe"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule heartbeat probe: %w", err)
	}
	w.scheduler.Start()
	w.logger.Info("Heartbeat watcher started", "interval", w.interval)
	return nil
}

// Stop shuts the scheduler down and closes every subscriber channel.
func (w *Watcher) Stop() error {
	err := w.scheduler.Shutdown()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for id, ch := range w.subs {
		close(ch)
		delete(w.subs, id)
	}
	if err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// Status returns the last sampled value and whether any sample has completed.
func (w *Watcher) Status() (online bool, known bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online, w.known
}

// Subscribe returns a channel that receives the latest status on every change.
// The channel holds only the newest value; slow readers skip intermediate ones.
// The returned func unsubscribes and closes the channel.
func (w *Watcher) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	if w.known {
		ch <- w.online
	}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if sub, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(sub)
			}
		})
	}
}

func (w *Watcher) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	w.update(w.prober.IsAlive(ctx))
}

func (w *Watcher) update(online bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.known && w.online == online {
		return
	}
	if w.known {
		w.logger.Info("Bot core status changed", "online", online)
	} else {
		w.logger.Info("Bot core initial status", "online", online)
	}
	w.online, w.known = online, true

	for _, ch := range w.subs {
		select {
		case ch <- online:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}

package liveness

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProber struct {
	alive atomic.Bool
	calls atomic.Int64
}

func (f *fakeProber) IsAlive(context.Context) bool {
	f.calls.Add(1)
	return f.alive.Load()
}

func newTestWatcher(t *testing.T, p Prober, interval time.Duration) *Watcher {
	t.Helper()
	w, err := NewWatcher(p, interval, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	return w
}

func TestWatcherNotifiesOnChangeOnly(t *testing.T) {
	p := &fakeProber{}
	w := newTestWatcher(t, p, time.Hour)
	defer func() { _ = w.Stop() }()

	ch, unsubscribe := w.Subscribe()
	defer unsubscribe()

	w.sample()
	if got := <-ch; got {
		t.Fatal("expected initial offline notification")
	}

	w.sample()
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification without change: %v", v)
	default:
	}

	p.alive.Store(true)
	w.sample()
	if got := <-ch; !got {
		t.Fatal("expected online notification")
	}

	online, known := w.Status()
	if !online || !known {
		t.Fatalf("Status() = %v, %v; want true, true", online, known)
	}
}

func TestWatcherSubscribeReceivesCurrentStatus(t *testing.T) {
	p := &fakeProber{}
	p.alive.Store(true)
	w := newTestWatcher(t, p, time.Hour)
	defer func() { _ = w.Stop() }()

	w.sample()

	ch, unsubscribe := w.Subscribe()
	defer unsubscribe()

	select {
	case got := <-ch:
		if !got {
			t.Fatal("expected current online status on subscribe")
		}
	default:
		t.Fatal("expected subscriber to receive the known status immediately")
	}
}

func TestWatcherSlowSubscriberKeepsLatest(t *testing.T) {
	p := &fakeProber{}
	w := newTestWatcher(t, p, time.Hour)
	defer func() { _ = w.Stop() }()

	ch, unsubscribe := w.Subscribe()
	defer unsubscribe()

	w.update(false)
	w.update(true)
	w.update(false)
	w.update(true)

	if got := <-ch; !got {
		t.Fatal("expected the newest value to win")
	}
}

func TestWatcherStopClosesSubscribers(t *testing.T) {
	w := newTestWatcher(t, &fakeProber{}, time.Hour)
	ch, unsubscribe := w.Subscribe()

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after Stop")
	}
	unsubscribe()

	late, _ := w.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after Stop to be closed")
	}
}

func TestWatcherStartSamplesImmediately(t *testing.T) {
	p := &fakeProber{}
	p.alive.Store(true)
	w := newTestWatcher(t, p, 50*time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = w.Stop() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if online, known := w.Status(); known {
			if !online {
				t.Fatal("expected online status")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher never sampled the prober")
}

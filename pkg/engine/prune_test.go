package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestPruneWorker_Prune(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		cfg        RetentionConfig
		deleted    int64
		err        error
		want       int64
		wantCalls  int
		wantCutoff time.Time
	}{
		{
			name:       "Enabled",
			cfg:        RetentionConfig{Enabled: true, MaxAge: 48 * time.Hour},
			deleted:    3,
			want:       3,
			wantCalls:  1,
			wantCutoff: now.Add(-48 * time.Hour),
		},
		{
			name: "Disabled",
			cfg:  RetentionConfig{Enabled: false, MaxAge: time.Hour},
		},
		{
			name: "ZeroMaxAge",
			cfg:  RetentionConfig{Enabled: true},
		},
		{
			name:      "StoreError",
			cfg:       RetentionConfig{Enabled: true, MaxAge: time.Hour},
			deleted:   5,
			err:       errors.New("disk full"),
			want:      0,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakePruner{deleted: tt.deleted, err: tt.err}
			w := NewPruneWorker(st, tt.cfg, nil)
			w.now = func() time.Time { return now }

			assert.Equal(t, tt.want, w.Prune(context.Background()))
			assert.Equal(t, tt.wantCalls, st.calls())
			if !tt.wantCutoff.IsZero() {
				assert.Equal(t, tt.wantCutoff, st.cutoffs[0])
			}
		})
	}
}

func TestPruneWorker_UpdateConfig(t *testing.T) {
	st := &fakePruner{deleted: 1}
	w := NewPruneWorker(st, RetentionConfig{}, nil)

	assert.Equal(t, int64(0), w.Prune(context.Background()))
	w.UpdateConfig(RetentionConfig{Enabled: true, MaxAge: time.Minute})
	assert.Equal(t, int64(1), w.Prune(context.Background()))
}

func TestPruneWorker_RunStopsOnCancel(t *testing.T) {
	st := &fakePruner{}
	w := NewPruneWorker(st, RetentionConfig{Enabled: true, MaxAge: time.Hour, CheckInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return st.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prune worker did not stop")
	}
}

func TestPruneWorker_RunDisabledReturns(t *testing.T) {
	st := &fakePruner{}
	w := NewPruneWorker(st, RetentionConfig{}, nil)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker should return immediately")
	}
	assert.Equal(t, 0, st.calls())
}

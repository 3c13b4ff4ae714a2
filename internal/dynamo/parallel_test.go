package dynamo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunParallel(t *testing.T) {
	out := make([]int, 100)
	err := RunParallel(context.Background(), len(out), func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != i*i {
			t.Errorf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestRunParallelFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	err := RunParallel(context.Background(), 50, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if calls.Load() == 0 {
		t.Error("no work ran")
	}
}

func TestRunParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunParallel(ctx, 10, func(context.Context, int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context canceled", err)
	}
}

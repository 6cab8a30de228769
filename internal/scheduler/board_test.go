package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBoardBroadcastsToAllWaiters(t *testing.T) {
	b := NewBoard()
	id := TaskID{ShotIdx: 0, Kind: KindFirstFrame}
	b.Register(id)

	const waiters = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := b.Wait(context.Background(), id)
			if err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			outcomes[i] = out
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	b.Done(id)
	wg.Wait()

	for i, out := range outcomes {
		if !out.Done || out.Failed {
			t.Errorf("waiter %d saw %+v", i, out)
		}
	}
}

func TestBoardResolvesOnce(t *testing.T) {
	b := NewBoard()
	id := TaskID{ShotIdx: 1, Kind: KindShotVideo}
	b.Register(id)

	b.Fail(id, errors.New("boom"))
	b.Done(id)

	out := b.Outcome(id)
	if !out.Failed || out.Done {
		t.Fatalf("second resolution overwrote the first: %+v", out)
	}
}

func TestBoardWaitUnregistered(t *testing.T) {
	b := NewBoard()
	_, err := b.Wait(context.Background(), TaskID{ShotIdx: 9, Kind: KindFirstFrame})
	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("want DependencyError, got %v", err)
	}
}

func TestBoardWaitHonorsContext(t *testing.T) {
	b := NewBoard()
	id := TaskID{ShotIdx: 0, Kind: KindFirstFrame}
	b.Register(id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Wait(ctx, id); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestBoardOutcomeNonBlocking(t *testing.T) {
	b := NewBoard()
	id := TaskID{ShotIdx: 0, Kind: KindLastFrame}
	b.Register(id)

	if out := b.Outcome(id); !out.Pending() {
		t.Fatalf("unresolved task not pending: %+v", out)
	}
	b.Done(id)
	if out := b.Outcome(id); !out.Done {
		t.Fatalf("resolved task not done: %+v", out)
	}
}

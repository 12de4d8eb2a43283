package skipList

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"MisakaKV/logger"
)

func TestNewCompactor(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	if _, e := NewCompactor(sl, 0); !errors.Is(e, logger.ParameterIsNotAllowed) {
		t.Errorf("zero interval should not be allowed, got %v", e)
	}
	if _, e := NewCompactor(nil, time.Second); !errors.Is(e, logger.ParameterIsNotAllowed) {
		t.Errorf("nil target should not be allowed, got %v", e)
	}
}

func TestCompactor_Sweep(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	for i := 0; i < 100; i++ {
		_ = sl.Insert(i, "v")
	}
	for i := 0; i < 100; i += 2 {
		sl.Delete(i)
	}

	c, e := NewCompactor(sl, 10*time.Millisecond)
	if e != nil {
		t.Fatal(e)
	}
	c.Start()
	c.Start() // 重复启动只会有一个协程

	deadline := time.Now().Add(2 * time.Second)
	for sl.Size() != 50 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	if sl.Size() != 50 {
		t.Errorf("compactor should reclaim tombstones, size %d", sl.Size())
	}
	if c.SweepCount() == 0 {
		t.Error("sweep count should be positive")
	}
	t.Log(c.SweepCount())
}

func TestCompactor_StopWakesImmediately(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	c, e := NewCompactor(sl, time.Hour)
	if e != nil {
		t.Fatal(e)
	}
	c.Start()
	start := time.Now()
	c.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stop should not wait for the interval, took %v", elapsed)
	}
	if c.SweepCount() != 0 {
		t.Errorf("no sweep should have run, got %d", c.SweepCount())
	}
}

// panicTarget 第一次压缩时 panic 之后正常
type panicTarget struct {
	calls atomic.Int32
}

func (p *panicTarget) Compact() int {
	if p.calls.Add(1) == 1 {
		panic("sweep failed")
	}
	return 0
}

func TestCompactor_RecoverFromPanic(t *testing.T) {
	target := &panicTarget{}
	c, e := NewCompactor(target, 5*time.Millisecond)
	if e != nil {
		t.Fatal(e)
	}
	c.Start()
	deadline := time.Now().Add(2 * time.Second)
	for target.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	if target.calls.Load() < 3 {
		t.Fatalf("compactor should keep running after a failed sweep, calls %d", target.calls.Load())
	}
	if c.SweepCount() != int(target.calls.Load())-1 {
		t.Errorf("failed sweep should not be counted, sweeps %d calls %d", c.SweepCount(), target.calls.Load())
	}
}

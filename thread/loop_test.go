package thread_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gsequencer/gsequencer-sub009/thread"
)

func TestLoopStepRunsLevelsInOrder(t *testing.T) {
	l := thread.NewLoop(4)
	defer l.Close()
	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	parent := l.NewWorker("parent", record("parent"))
	child := l.NewWorker("child", record("child"))
	l.AddChild(l.Root(), parent)
	l.AddChild(parent, child)
	l.StartProcessing(parent)
	l.StartProcessing(child)

	l.Step()
	if len(order) != 2 || order[0] != "parent" || order[1] != "child" {
		t.Fatalf("unexpected tick order %v", order)
	}
	if got := l.Cycles(); got != 1 {
		t.Errorf("expected 1 cycle, got %v", got)
	}
}

func TestLoopStoppedWorkerPausesSubtree(t *testing.T) {
	l := thread.NewLoop(2)
	defer l.Close()
	var parentTicks, childTicks atomic.Int32
	parent := l.NewWorker("parent", func() { parentTicks.Add(1) })
	child := l.NewWorker("child", func() { childTicks.Add(1) })
	l.AddChild(l.Root(), parent)
	l.AddChild(parent, child)
	l.StartProcessing(child)

	l.Step()
	if parentTicks.Load() != 0 || childTicks.Load() != 0 {
		t.Fatalf("workers ticked while parent was not processing")
	}
	l.StartProcessing(parent)
	l.Step()
	l.StopProcessing(child)
	l.Step()
	if parentTicks.Load() != 2 || childTicks.Load() != 1 {
		t.Fatalf("expected 2 parent and 1 child ticks, got %v and %v", parentTicks.Load(), childTicks.Load())
	}
}

func TestLoopChildren(t *testing.T) {
	l := thread.NewLoop(1)
	defer l.Close()
	a := l.NewWorker("a", nil)
	b := l.NewWorker("b", nil)
	l.AddChild(l.Root(), a)
	l.AddChild(l.Root(), b)
	if n := len(l.Children(l.Root())); n != 2 {
		t.Fatalf("expected 2 children, got %v", n)
	}
	l.AddChild(a, b) // moves b under a
	if n := len(l.Children(l.Root())); n != 1 {
		t.Errorf("expected 1 child of root, got %v", n)
	}
	l.RemoveChild(a, b)
	if n := len(l.Children(a)); n != 0 {
		t.Errorf("expected no children of a, got %v", n)
	}
}

func TestLoopIdle(t *testing.T) {
	l := thread.NewLoop(1)
	defer l.Close()
	var got any
	l.OnIdle(func(owner any) { got = owner })
	l.Idle("track")
	if got != "track" {
		t.Errorf("expected idle owner track, got %v", got)
	}
}

func TestLoopStepAfterClose(t *testing.T) {
	l := thread.NewLoop(1)
	l.Close()
	l.Close()
	l.Step()
	if l.Cycles() != 0 {
		t.Errorf("Step ran after Close")
	}
}

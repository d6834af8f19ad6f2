package thread

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Loop is a Scheduler that runs the ticks of all processing workers once
	// per Step. Workers are run level by level: first the children of the
	// root, then their children, and so on. Within a level, ticks run in
	// parallel on a fixed pool of goroutines and Step waits for the whole
	// level before moving on. A worker that is not processing also pauses its
	// subtree.
	Loop struct {
		root     *worker
		commands chan<- loopCommand
		closed   atomic.Bool
		cycles   atomic.Uint64
		logger   *slog.Logger

		mu     sync.Mutex // guards the worker tree and onIdle
		onIdle func(owner any)
	}

	worker struct {
		name       string
		tick       func()
		processing atomic.Bool
		parent     *worker
		children   []*worker
	}

	loopCommand struct {
		w  *worker
		wg *sync.WaitGroup
	}
)

var _ Scheduler = (*Loop)(nil)

// NewLoop starts a loop with the given number of pool goroutines. threads
// <= 0 uses GOMAXPROCS.
func NewLoop(threads int) *Loop {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	cmdChan := make(chan loopCommand, threads)
	l := &Loop{
		root:     &worker{name: "root"},
		commands: cmdChan,
		logger:   slog.Default().With("component", "thread"),
	}
	l.root.processing.Store(true)
	for i := 0; i < threads; i++ {
		go func(commandCh <-chan loopCommand) {
			for cmd := range commandCh {
				if cmd.w.tick != nil {
					cmd.w.tick()
				}
				cmd.wg.Done()
			}
		}(cmdChan)
	}
	return l
}

func (w *worker) Name() string       { return w.name }
func (w *worker) IsProcessing() bool { return w.processing.Load() }

func (l *Loop) Root() Worker { return l.root }

func (l *Loop) NewWorker(name string, tick func()) Worker {
	return &worker{name: name, tick: tick}
}

func (l *Loop) AddChild(parent, child Worker) {
	p, c, ok := l.pair(parent, child)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	c.parent = p
	p.children = append(p.children, c)
}

func (l *Loop) RemoveChild(parent, child Worker) {
	p, c, ok := l.pair(parent, child)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.parent == p {
		p.removeChild(c)
		c.parent = nil
	}
}

func (l *Loop) StartProcessing(w Worker) {
	if ww, ok := w.(*worker); ok {
		ww.processing.Store(true)
	}
}

func (l *Loop) StopProcessing(w Worker) {
	if ww, ok := w.(*worker); ok {
		ww.processing.Store(false)
	}
}

// OnIdle sets the function called when an owner reports it has nothing left
// to process.
func (l *Loop) OnIdle(f func(owner any)) {
	l.mu.Lock()
	l.onIdle = f
	l.mu.Unlock()
}

func (l *Loop) Idle(owner any) {
	l.mu.Lock()
	f := l.onIdle
	l.mu.Unlock()
	l.logger.Debug("owner idle", "owner", owner)
	if f != nil {
		f(owner)
	}
}

// Children returns the current children of w.
func (l *Loop) Children(w Worker) []Worker {
	ww, ok := w.(*worker)
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := make([]Worker, len(ww.children))
	for i, c := range ww.children {
		ret[i] = c
	}
	return ret
}

// Cycles returns how many times Step has completed.
func (l *Loop) Cycles() uint64 { return l.cycles.Load() }

// Step runs one cycle and returns after every tick of the cycle returned.
// It does nothing after Close.
func (l *Loop) Step() {
	if l.closed.Load() {
		return
	}
	for _, level := range l.levels() {
		var wg sync.WaitGroup
		wg.Add(len(level))
		for _, w := range level {
			l.commands <- loopCommand{w: w, wg: &wg}
		}
		wg.Wait()
	}
	l.cycles.Add(1)
}

// Run steps the loop every period until ctx is done.
func (l *Loop) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Step()
		}
	}
}

// Close stops the pool goroutines. Step must not be running concurrently.
func (l *Loop) Close() {
	if l.closed.CompareAndSwap(false, true) {
		close(l.commands)
	}
}

func (l *Loop) levels() [][]*worker {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ret [][]*worker
	current := []*worker{l.root}
	for len(current) > 0 {
		var next []*worker
		for _, w := range current {
			for _, c := range w.children {
				if c.processing.Load() {
					next = append(next, c)
				}
			}
		}
		if len(next) > 0 {
			ret = append(ret, next)
		}
		current = next
	}
	return ret
}

func (l *Loop) pair(parent, child Worker) (*worker, *worker, bool) {
	p, ok1 := parent.(*worker)
	c, ok2 := child.(*worker)
	if !ok1 || !ok2 || p == nil || c == nil {
		l.logger.Warn("worker not created by this loop", "parent", parent, "child", child)
		return nil, nil, false
	}
	return p, c, true
}

func (w *worker) removeChild(c *worker) {
	if i := slices.Index(w.children, c); i >= 0 {
		w.children = slices.Delete(w.children, i, i+1)
	}
}

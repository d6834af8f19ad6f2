// Package thread defines what tracks need from a thread scheduler and
// provides Loop, a small reference scheduler driving workers from a pool of
// goroutines.
package thread

type (
	// Worker is a schedulable unit of work. Tracks own one worker per sound
	// scope, and super-threaded tracks one more per output channel and scope.
	Worker interface {
		Name() string
		IsProcessing() bool
	}

	// Scheduler is the process-wide thread tree. Tracks only add, remove,
	// start and stop their workers; when and where the workers run is up to
	// the scheduler.
	Scheduler interface {
		// Root is the parent of every track level worker.
		Root() Worker
		// NewWorker creates a worker that calls tick once per cycle while
		// processing.
		NewWorker(name string, tick func()) Worker
		AddChild(parent, child Worker)
		RemoveChild(parent, child Worker)
		StartProcessing(w Worker)
		StopProcessing(w Worker)
		// Idle tells the scheduler that owner has nothing left to process.
		Idle(owner any)
	}
)

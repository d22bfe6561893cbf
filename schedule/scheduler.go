package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	zedupdate "github.com/zedloc/zed-updater"
	"github.com/zedloc/zed-updater/internal"
	"github.com/zedloc/zed-updater/settings"
)

const (
	// MaxWake bounds the sleep of the worker between two looks at the clock and the stop signal
	MaxWake            = 60 * time.Second
	DefaultStopTimeout = 5 * time.Second
	startupDelay       = 5 * time.Second
	runKey             = "check"
)

var log = internal.Log

// Checker runs the update pipeline. *zedupdate.Updater implements it.
type Checker interface {
	CheckAndUpdate(ctx context.Context, progress zedupdate.ProgressFunc) *zedupdate.UpdateResult
}

// Observer is told about the result of every run, scheduled or forced.
// updateAvailable is true when a new version has been installed.
type Observer func(updateAvailable bool, result *zedupdate.UpdateResult)

// State is the runtime state of the scheduler. Zero times mean "never" or "not scheduled".
type State struct {
	Running    bool
	NextRun    time.Time
	LastRun    time.Time
	LastResult *zedupdate.UpdateResult
}

type observerEntry struct {
	id       uuid.UUID
	observer Observer
}

// Scheduler runs the update pipeline in a background worker, at the times given by the settings.
type Scheduler struct {
	checker Checker
	store   *settings.Store

	mu        sync.Mutex
	state     State
	observers []observerEntry
	stop      chan struct{}
	done      chan struct{}
	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	runs singleflight.Group

	now          func() time.Time
	maxWake      time.Duration
	stopTimeout  time.Duration
	startupDelay time.Duration
}

// New creates a stopped scheduler.
func New(checker Checker, store *settings.Store) *Scheduler {
	return &Scheduler{
		checker:      checker,
		store:        store,
		now:          time.Now,
		maxWake:      MaxWake,
		stopTimeout:  DefaultStopTimeout,
		startupDelay: startupDelay,
	}
}

// Start launches the worker. It returns false when the scheduler is already running
// or when automatic checks are disabled.
func (s *Scheduler) Start() bool {
	current := s.store.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running {
		log.Print("scheduler is already running")
		return false
	}
	if !current.AutoCheckEnabled {
		log.Print("automatic checks are disabled, scheduler not started")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	s.ctx = ctx
	s.cancel = cancel
	s.state.Running = true
	s.state.NextRun = NextRun(s.now(), ConfigFromSettings(current))

	go s.loop(ctx, s.stop, s.done, s.wake, current.CheckOnStartup)
	log.Printf("scheduler started, next check at %s", s.state.NextRun.Format(time.RFC3339))
	return true
}

// Stop signals the worker and waits for it, at most for the stop timeout.
// A check in progress is cancelled. It returns false when the scheduler was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.state.Running {
		s.mu.Unlock()
		return false
	}
	close(s.stop)
	s.cancel()
	done := s.done
	s.state.Running = false
	s.state.NextRun = time.Time{}
	s.mu.Unlock()

	select {
	case <-done:
		log.Print("scheduler stopped")
	case <-time.After(s.stopTimeout):
		log.Printf("scheduler worker still busy after %s, leaving it to finish", s.stopTimeout)
	}
	return true
}

// Restart stops the scheduler if needed and starts it again with the current settings.
func (s *Scheduler) Restart() bool {
	s.Stop()
	return s.Start()
}

// IsRunning tells whether the worker is started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Running
}

// UpdateScheduleConfig recomputes the next run after a change of the schedule settings.
func (s *Scheduler) UpdateScheduleConfig() {
	config := ConfigFromSettings(s.store.Snapshot())

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Running {
		return
	}
	s.state.NextRun = NextRun(s.now(), config)
	log.Printf("next check rescheduled at %s", s.state.NextRun.Format(time.RFC3339))
	s.wakeLocked()
}

// ForceCheckNow runs the pipeline out of schedule, in the background. The next scheduled run
// is not moved. A run already in progress is joined instead of starting a second one.
// The returned channel receives the result. While the worker is running, Stop cancels the forced run too.
func (s *Scheduler) ForceCheckNow() <-chan *zedupdate.UpdateResult {
	log.Print("forced update check")
	ctx := context.Background()
	s.mu.Lock()
	if s.state.Running {
		ctx = s.ctx
	}
	s.mu.Unlock()

	result := make(chan *zedupdate.UpdateResult, 1)
	go func() {
		result <- s.run(ctx)
	}()
	return result
}

// GetStatus returns a copy of the state.
func (s *Scheduler) GetStatus() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddObserver registers an observer and returns the id to remove it.
func (s *Scheduler) AddObserver(observer Observer) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observerEntry{id: id, observer: observer})
	return id
}

// RemoveObserver unregisters an observer. It returns false for an unknown id.
func (s *Scheduler) RemoveObserver(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.observers {
		if entry.id == id {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}, wake <-chan struct{}, onStartup bool) {
	defer close(done)

	if onStartup {
		if !s.sleep(stop, nil, s.startupDelay) {
			return
		}
		log.Print("startup update check")
		s.run(ctx)
	}

	for {
		s.mu.Lock()
		next := s.state.NextRun
		s.mu.Unlock()

		wait := next.Sub(s.now())
		if wait <= 0 {
			log.Print("scheduled update check")
			s.run(ctx)
			s.reschedule()
			continue
		}
		if !s.sleep(stop, wake, min(wait, s.maxWake)) {
			return
		}
	}
}

// sleep waits for d, a wake up or the stop signal. It returns false on stop.
func (s *Scheduler) sleep(stop <-chan struct{}, wake <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-wake:
	case <-timer.C:
	}
	return true
}

func (s *Scheduler) reschedule() {
	config := ConfigFromSettings(s.store.Snapshot())
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Running {
		return
	}
	s.state.NextRun = NextRun(s.now(), config)
	log.Printf("next check at %s", s.state.NextRun.Format(time.RFC3339))
}

func (s *Scheduler) wakeLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run executes one check, shared with any other caller asking at the same time,
// records it and notifies the observers.
func (s *Scheduler) run(ctx context.Context) *zedupdate.UpdateResult {
	value, _, _ := s.runs.Do(runKey, func() (any, error) {
		result := s.check(ctx)

		s.mu.Lock()
		s.state.LastRun = s.now()
		s.state.LastResult = result
		observers := make([]observerEntry, len(s.observers))
		copy(observers, s.observers)
		s.mu.Unlock()

		updateAvailable := result.Success && result.InstalledVersion != ""
		for _, entry := range observers {
			notify(entry, updateAvailable, result)
		}
		return result, nil
	})
	return value.(*zedupdate.UpdateResult)
}

func (s *Scheduler) check(ctx context.Context) (result *zedupdate.UpdateResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("update check aborted: %v", r)
			result = &zedupdate.UpdateResult{
				Message:   fmt.Sprintf("scheduled check failed: %v", r),
				ErrorCode: zedupdate.CodeUpdate,
				Err:       fmt.Errorf("%v", r),
			}
		}
	}()
	result = s.checker.CheckAndUpdate(ctx, nil)
	if result == nil {
		result = &zedupdate.UpdateResult{Message: "no result", ErrorCode: zedupdate.CodeUpdate}
	}
	log.Printf("update check: %s", result)
	return result
}

func notify(entry observerEntry, updateAvailable bool, result *zedupdate.UpdateResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("warning: observer %s failed: %v", entry.id, r)
		}
	}()
	entry.observer(updateAvailable, result)
}

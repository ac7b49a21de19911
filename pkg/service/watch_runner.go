package service

import (
	"math/rand"
	"sync"

	"github.com/dfh-cloud/dfh/pkg/kube"
	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
)

const WatchRunnerKey = "WatchRunner"

const (
	// Server side watch timeout: 120s +/- 10s so the per-kind streams do
	// not all reconnect in lock step.
	watchTimeoutSeconds = 120
	watchTimeoutJitter  = 10
)

type WatchState string

const (
	WatchRunning WatchState = "running"
	WatchStopped WatchState = "stopped"
	WatchFailed  WatchState = "failed"
)

// WatchRunner owns one watcher per mirrored resource kind for the lifetime
// of the process. A watcher that dies with a failure sentinel stays dead
// and flips the runner's health; it never silently restarts.
type WatchRunner interface {
	Start()
	Stop()

	// Health returns the per-kind stream states. Healthy reports whether
	// every stream is still running.
	Health() map[string]WatchState
	Healthy() bool
}

type watchRunner struct {
	KubeClient     kube.Client    `inject:"KubeClient"`
	TrackerService TrackerService `inject:"TrackerService"`

	lock     sync.RWMutex
	states   map[string]WatchState
	watchers []kube.Watcher
	wg       sync.WaitGroup
	started  bool
}

func (w *watchRunner) Start() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.states = map[string]WatchState{}

	for _, res := range model.DefaultWatchedResources() {
		res := res
		w.states[res.Kind] = WatchRunning

		watcher := kube.NewWatcher(kube.WatcherSpec{
			Client:         w.KubeClient,
			Path:           res.Path,
			Kind:           res.Kind,
			TimeoutSeconds: watchTimeoutSeconds - watchTimeoutJitter + rand.Intn(2*watchTimeoutJitter+1),
		})
		w.watchers = append(w.watchers, watcher)

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			end := w.TrackerService.Track(res, watcher.Events())

			state := WatchStopped
			if end == model.EventFailed {
				state = WatchFailed
				log.WithField("kind", res.Kind).Error("Watch stream failed permanently")
			}
			w.lock.Lock()
			w.states[res.Kind] = state
			w.lock.Unlock()
		}()
	}

	log.WithField("streams", len(w.watchers)).Info("Started cluster state mirror")
}

func (w *watchRunner) Stop() {
	w.lock.Lock()
	watchers := w.watchers
	w.lock.Unlock()

	for _, watcher := range watchers {
		watcher.Stop()
	}
	w.wg.Wait()
}

func (w *watchRunner) Health() map[string]WatchState {
	w.lock.RLock()
	defer w.lock.RUnlock()
	out := make(map[string]WatchState, len(w.states))
	for kind, state := range w.states {
		out[kind] = state
	}
	return out
}

func (w *watchRunner) Healthy() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()
	if !w.started {
		return false
	}
	for _, state := range w.states {
		if state != WatchRunning {
			return false
		}
	}
	return true
}

package kube

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
)

const (
	// Inner retry delay between reconnect attempts: 5s +/- 2s.
	reconnectDelay  = 5 * time.Second
	reconnectJitter = 2 * time.Second

	// Largest single watch event line the stream reader accepts.
	maxLineBytes = 4 << 20
)

// Watcher mirrors one K8s resource collection via list-then-watch. It
// produces change events into an ordered channel and reconnects forever.
// The stream ends only on cancellation (EventCancelled sentinel) or on an
// internal fault (EventFailed sentinel); in both cases the sentinel is the
// last event before the channel closes. A watcher cannot be restarted, only
// recreated.
type Watcher interface {
	Events() <-chan model.WatchEvent
	Stop()
}

type WatcherSpec struct {
	Client Client

	// List path of the resource collection, eg `/api/v1/pods`.
	Path string

	// Kind is only used for log correlation.
	Kind string

	// Server side stream timeout in seconds. The connection self-terminates
	// after this long even under normal operation, which is handled exactly
	// like a clean disconnect.
	TimeoutSeconds int
}

func NewWatcher(spec WatcherSpec) Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		client:  spec.Client,
		path:    spec.Path,
		timeout: spec.TimeoutSeconds,
		lastRV:  -1,
		state:   map[string]model.Manifest{},
		events:  make(chan model.WatchEvent, 64),
		ctx:     ctx,
		cancel:  cancel,
		logger: log.WithField("component", "k8s-watch").
			WithField("kind", spec.Kind).
			WithField("path", spec.Path),
	}
	go w.run()
	return w
}

type watcher struct {
	client  Client
	path    string
	timeout int

	// Last seen resource version. Negative forces a full list.
	lastRV int64

	// Current knowledge as a `key -> manifest` map. Only the run goroutine
	// touches it.
	state map[string]model.Manifest

	events chan model.WatchEvent
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Entry
}

func (w *watcher) Events() <-chan model.WatchEvent {
	return w.events
}

func (w *watcher) Stop() {
	w.cancel()
}

// run perpetually restarts the list/stream cycle. It does not return until
// it is cancelled or an internal fault (ie a bug) escapes, and it always
// delivers the matching sentinel before closing the event channel.
func (w *watcher) run() {
	defer close(w.events)
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithField("panic", r).Error("Unhandled fault in watcher")
			w.events <- model.WatchEvent{Type: model.EventFailed}
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Watcher cancelled")
			w.events <- model.WatchEvent{Type: model.EventCancelled}
			return
		default:
		}

		if backoffNeeded := w.readStream(); backoffNeeded {
			w.sleepWithJitter()
		}
	}
}

// readStream runs one LISTING (when the cursor is unknown) followed by one
// STREAMING pass. It reports whether the caller should back off before the
// next attempt: true for genuine problems, false for protocol-expected
// conditions (clean close, 410 Gone) that warrant an immediate resync.
func (w *watcher) readStream() bool {
	if w.lastRV < 0 {
		rv, err := w.listResource()
		if err != nil {
			w.logger.WithError(err).Warn("Cannot list resource")
			return true
		}
		w.lastRV = rv
	}

	body, err := w.client.Stream(w.ctx, WatchPath(w.path, w.timeout, w.lastRV))
	if err != nil {
		if w.ctx.Err() != nil {
			return false
		}
		w.logger.WithError(err).Warn("Cannot start watch")
		w.lastRV = -1
		return true
	}
	defer body.Close()

	reader := bufio.NewReaderSize(body, 64<<10)
	for {
		line, err := readLine(reader)
		if err != nil {
			// The server closes the stream periodically. That is expected
			// and simply means we back off briefly and re-list.
			w.logger.Info("Connection closed")
			w.lastRV = -1
			return w.ctx.Err() == nil
		}
		if len(line) == 0 {
			continue
		}

		resync, failed := w.parseLine(line)
		if resync {
			// 410 Gone: our cursor expired from the server's history. Not
			// an error; transition straight back to LISTING.
			w.lastRV = -1
			return false
		}
		if failed {
			w.lastRV = -1
			return true
		}
	}
}

// listResource downloads the full collection, reconciles the internal state
// against it with synthetic events and returns the collection's cursor.
func (w *watcher) listResource() (int64, error) {
	ret, err := w.client.Get(w.ctx, w.path)
	if err != nil {
		return -1, err
	}

	items, _ := ret["items"].([]interface{})
	w.resetState(items)

	metadata, _ := ret["metadata"].(map[string]interface{})
	rvRaw, _ := metadata["resourceVersion"].(string)
	rv, err := strconv.ParseInt(rvRaw, 10, 64)
	if err != nil {
		return -1, err
	}
	return rv, nil
}

// resetState transitions the tracked state to the freshly listed manifests,
// emitting the ADDED, MODIFIED and DELETED events an uninterrupted watch
// would have produced. Applying those events to the old state yields
// exactly the new snapshot regardless of how many events were missed while
// disconnected.
func (w *watcher) resetState(items []interface{}) {
	newState := map[string]model.Manifest{}
	for _, item := range items {
		manifest, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		key, _, err := model.ManifestKey(manifest)
		if err != nil {
			w.logger.WithError(err).Error("Listed manifest has no key")
			continue
		}
		newState[key] = manifest
	}

	// Emit in key order so reconciliation is deterministic.
	for _, key := range sortedStateKeys(w.state) {
		if _, ok := newState[key]; !ok {
			oldObj := w.state[key]
			delete(w.state, key)
			w.deliver(model.WatchEvent{Type: model.EventDeleted, Object: oldObj})
		}
	}

	for _, key := range sortedStateKeys(newState) {
		newObj := newState[key]
		oldObj, ok := w.state[key]
		if !ok {
			w.state[key] = newObj
			w.deliver(model.WatchEvent{Type: model.EventAdded, Object: newObj})
			continue
		}
		if !model.ManifestsEqual(oldObj, newObj) {
			w.state[key] = newObj
			w.deliver(model.WatchEvent{Type: model.EventModified, Object: newObj})
		}
	}
}

func sortedStateKeys(state map[string]model.Manifest) []string {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// parseLine decodes one newline-delimited watch event. It reports whether
// the watcher must resync from a fresh list (410 Gone) or reconnect due to
// a genuine failure.
func (w *watcher) parseLine(line []byte) (resync bool, failed bool) {
	var event model.WatchEvent
	if err := json.Unmarshal(line, &event); err != nil {
		w.logger.WithError(err).Error("K8s sent corrupt JSON payload")
		return false, true
	}

	switch event.Type {
	case model.EventAdded, model.EventModified, model.EventDeleted:
		w.updateState(event)
		return false, false
	case model.EventError:
		if code, ok := event.Object["code"].(float64); ok && int(code) == 410 {
			w.logger.Info("Watch cursor expired (410 Gone)")
			return true, false
		}
		w.logger.WithField("object", event.Object).Warn("Received error event from K8s")
		return false, true
	default:
		w.logger.WithField("type", event.Type).Warn("Received unexpected event from K8s")
		return false, true
	}
}

// updateState applies one streamed event to the tracked state and forwards
// it to the consumer. Inconsistent events are bugs on either side; they are
// logged and reclassified rather than crashing the watcher.
func (w *watcher) updateState(event model.WatchEvent) {
	obj := event.Object
	key, _, err := model.ManifestKey(obj)
	if err != nil {
		w.logger.WithError(err).Error("Streamed manifest has no key")
		return
	}

	// Track the latest cursor from the event object itself.
	if metadata, ok := obj["metadata"].(map[string]interface{}); ok {
		if rvRaw, ok := metadata["resourceVersion"].(string); ok {
			if rv, err := strconv.ParseInt(rvRaw, 10, 64); err == nil {
				w.lastRV = rv
			}
		}
	}

	switch event.Type {
	case model.EventAdded:
		if _, ok := w.state[key]; ok {
			w.logger.WithField("key", key).Error("Bug: add of existing key")
			event.Type = model.EventModified
		}
		w.state[key] = obj
		w.deliver(event)

	case model.EventModified:
		if _, ok := w.state[key]; !ok {
			w.logger.WithField("key", key).Error("Bug: modify of non-existing key")
			event.Type = model.EventAdded
		}
		w.deliver(event)
		w.state[key] = obj

	case model.EventDeleted:
		if _, ok := w.state[key]; !ok {
			w.logger.WithField("key", key).Error("Bug: remove of non-existing key")
			return
		}
		delete(w.state, key)
		w.deliver(event)
	}
}

func (w *watcher) deliver(event model.WatchEvent) {
	select {
	case w.events <- event:
	case <-w.ctx.Done():
	}
}

func (w *watcher) sleepWithJitter() {
	jitter := time.Duration((rand.Float64()*2 - 1) * float64(reconnectJitter))
	select {
	case <-time.After(reconnectDelay + jitter):
	case <-w.ctx.Done():
	}
}

func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > maxLineBytes {
		return nil, io.ErrShortBuffer
	}
	return line[:len(line)-1], nil
}

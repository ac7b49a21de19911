package kube

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/stretchr/testify/suite"
)

// fakeAPIServer scripts one sequence of list responses and watch streams.
// Exhausted watch scripts block until the client goes away, which keeps the
// watcher parked in its streaming state.
type fakeAPIServer struct {
	lock sync.Mutex

	lists   []model.Manifest
	watches [][]model.WatchEvent

	watchRVs   []string
	listCalls  int
	watchCalls int

	server *httptest.Server
}

func newFakeAPIServer() *fakeAPIServer {
	f := &fakeAPIServer{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeAPIServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("watch") == "true" {
		f.handleWatch(w, r)
		return
	}

	f.lock.Lock()
	f.listCalls++
	var list model.Manifest
	if len(f.lists) > 0 {
		list = f.lists[0]
		if len(f.lists) > 1 {
			f.lists = f.lists[1:]
		}
	}
	f.lock.Unlock()

	_ = json.NewEncoder(w).Encode(list)
}

func (f *fakeAPIServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	f.watchCalls++
	f.watchRVs = append(f.watchRVs, r.URL.Query().Get("resourceVersion"))
	var events []model.WatchEvent
	scripted := len(f.watches) > 0
	if scripted {
		events = f.watches[0]
		f.watches = f.watches[1:]
	}
	f.lock.Unlock()

	flusher := w.(http.Flusher)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, event := range events {
		raw, _ := json.Marshal(event)
		_, _ = w.Write(append(raw, '\n'))
		flusher.Flush()
	}

	if !scripted {
		<-r.Context().Done()
	}
}

func (f *fakeAPIServer) counts() (lists, watches int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.listCalls, f.watchCalls
}

func podManifest(name, rv, image string) model.Manifest {
	return model.Manifest{
		"metadata": map[string]interface{}{
			"name":            name,
			"namespace":       "demo",
			"resourceVersion": rv,
		},
		"spec": map[string]interface{}{"image": image},
	}
}

func podList(rv string, pods ...model.Manifest) model.Manifest {
	items := make([]interface{}, 0, len(pods))
	for _, pod := range pods {
		items = append(items, map[string]interface{}(pod))
	}
	return model.Manifest{
		"metadata": map[string]interface{}{"resourceVersion": rv},
		"items":    items,
	}
}

type WatcherTestSuite struct {
	suite.Suite
}

func (w *WatcherTestSuite) nextEvent(events <-chan model.WatchEvent, timeout time.Duration) model.WatchEvent {
	select {
	case event, ok := <-events:
		if !ok {
			w.FailNow("event channel closed unexpectedly")
		}
		return event
	case <-time.After(timeout):
		w.FailNow("timed out waiting for watch event")
	}
	return model.WatchEvent{}
}

func (w *WatcherTestSuite) expectEvent(events <-chan model.WatchEvent, eventType model.EventType, name string) {
	event := w.nextEvent(events, 5*time.Second)
	w.Equal(eventType, event.Type)
	metadata, _ := event.Object["metadata"].(map[string]interface{})
	w.Equal(name, metadata["name"])
}

func (w *WatcherTestSuite) expectClose(events <-chan model.WatchEvent, sentinel model.EventType) {
	event := w.nextEvent(events, 5*time.Second)
	w.Equal(sentinel, event.Type)

	select {
	case _, ok := <-events:
		w.False(ok, "no events may follow the sentinel")
	case <-time.After(5 * time.Second):
		w.FailNow("channel did not close after the sentinel")
	}
}

func (w *WatcherTestSuite) TestMirrorsStateAndResyncsOnGone() {
	// -- Given
	//
	api := newFakeAPIServer()
	defer api.server.Close()

	api.lists = []model.Manifest{
		podList("10", podManifest("a", "10", "img:v1")),
		podList("20", podManifest("a", "19", "img:v2"), podManifest("b", "20", "img:v1")),
	}
	api.watches = [][]model.WatchEvent{
		{
			{Type: model.EventModified, Object: podManifest("a", "11", "img:v1b")},
			{Type: model.EventError, Object: model.Manifest{"code": 410.0, "reason": "Expired"}},
		},
		{
			{Type: model.EventDeleted, Object: podManifest("b", "21", "img:v1")},
		},
	}

	watcher := NewWatcher(WatcherSpec{
		Client:         NewClientForHost(api.server.URL, api.server.Client()),
		Path:           "/api/v1/pods",
		Kind:           model.KindPod,
		TimeoutSeconds: 60,
	})
	events := watcher.Events()

	// -- Then
	//
	w.expectEvent(events, model.EventAdded, "a")
	w.expectEvent(events, model.EventModified, "a")

	// 410 Gone rolls straight into a fresh list. The re-list reconciles via
	// synthetic events: a changed while disconnected, b is new.
	w.expectEvent(events, model.EventModified, "a")
	w.expectEvent(events, model.EventAdded, "b")
	w.expectEvent(events, model.EventDeleted, "b")

	// The second watch resumes from the re-listed cursor, not the stale one.
	api.lock.Lock()
	rvs := append([]string{}, api.watchRVs...)
	api.lock.Unlock()
	w.Require().Len(rvs, 2)
	w.Equal("10", rvs[0])
	w.Equal("20", rvs[1])

	// -- When
	//
	watcher.Stop()

	// -- Then
	//
	w.expectClose(events, model.EventCancelled)
}

func (w *WatcherTestSuite) TestReconnectsAfterCleanClose() {
	// -- Given
	//
	api := newFakeAPIServer()
	defer api.server.Close()

	api.lists = []model.Manifest{podList("10", podManifest("a", "10", "img:v1"))}
	// One scripted empty stream: the server closes it right away.
	api.watches = [][]model.WatchEvent{{}}

	watcher := NewWatcher(WatcherSpec{
		Client:         NewClientForHost(api.server.URL, api.server.Client()),
		Path:           "/api/v1/pods",
		Kind:           model.KindPod,
		TimeoutSeconds: 60,
	})
	events := watcher.Events()

	w.expectEvent(events, model.EventAdded, "a")

	// -- Then
	//
	// A clean close re-lists after a short backoff and resumes streaming.
	// The unchanged list produces no synthetic events.
	w.Eventually(func() bool {
		lists, watches := api.counts()
		return lists >= 2 && watches >= 2
	}, 15*time.Second, 100*time.Millisecond)

	select {
	case event := <-events:
		w.Failf("unexpected event", "%+v", event)
	default:
	}

	// -- When
	//
	watcher.Stop()

	// -- Then
	//
	w.expectClose(events, model.EventCancelled)
}

func (w *WatcherTestSuite) TestReclassifiesInconsistentEvents() {
	// -- Given
	//
	api := newFakeAPIServer()
	defer api.server.Close()

	api.lists = []model.Manifest{podList("10", podManifest("a", "10", "img:v1"))}
	api.watches = [][]model.WatchEvent{
		{
			// Add of a known key, modify of an unknown key, delete of an
			// unknown key.
			{Type: model.EventAdded, Object: podManifest("a", "11", "img:v2")},
			{Type: model.EventModified, Object: podManifest("c", "12", "img:v1")},
			{Type: model.EventDeleted, Object: podManifest("d", "13", "img:v1")},
			{Type: model.EventModified, Object: podManifest("c", "14", "img:v2")},
		},
	}

	watcher := NewWatcher(WatcherSpec{
		Client:         NewClientForHost(api.server.URL, api.server.Client()),
		Path:           "/api/v1/pods",
		Kind:           model.KindPod,
		TimeoutSeconds: 60,
	})
	events := watcher.Events()

	// -- Then
	//
	w.expectEvent(events, model.EventAdded, "a")
	w.expectEvent(events, model.EventModified, "a")
	w.expectEvent(events, model.EventAdded, "c")
	// The delete of d is dropped entirely; the follow-up modify of c is now
	// consistent.
	w.expectEvent(events, model.EventModified, "c")

	// -- When
	//
	watcher.Stop()

	// -- Then
	//
	w.expectClose(events, model.EventCancelled)
}

func (w *WatcherTestSuite) TestFailsOnUnknownEventType() {
	// -- Given
	//
	api := newFakeAPIServer()
	defer api.server.Close()

	api.lists = []model.Manifest{podList("10")}
	api.watches = [][]model.WatchEvent{
		{
			{Type: "BOOKMARK", Object: model.Manifest{}},
		},
	}

	watcher := NewWatcher(WatcherSpec{
		Client:         NewClientForHost(api.server.URL, api.server.Client()),
		Path:           "/api/v1/pods",
		Kind:           model.KindPod,
		TimeoutSeconds: 60,
	})
	defer watcher.Stop()

	// -- Then
	//
	// The unknown event forces a reconnect with a fresh list.
	w.Eventually(func() bool {
		lists, _ := api.counts()
		return lists >= 2
	}, 15*time.Second, 100*time.Millisecond)
}

func TestWatcherTestSuite(t *testing.T) {
	suite.Run(t, new(WatcherTestSuite))
}

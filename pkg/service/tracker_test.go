package service

import (
	"testing"

	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/stretchr/testify/suite"
)

type TrackerTestSuite struct {
	suite.Suite

	db      database.Database
	tracker TrackerService
}

func (t *TrackerTestSuite) SetupTest() {
	t.db = database.NewDatabase(database.Spec{ManagedBy: "dfh", EnvLabel: "env"})
	t.tracker = &trackerService{Database: t.db}
}

func (t *TrackerTestSuite) TestUpdatesMirrorAndReturnsSentinel() {
	// -- Given
	//
	res := model.DefaultWatchedResources()[model.KindService]
	events := make(chan model.WatchEvent, 8)

	events <- model.WatchEvent{Type: model.EventAdded, Object: model.Manifest{
		"metadata": map[string]interface{}{"name": "nginx", "namespace": "demo"},
	}}
	events <- model.WatchEvent{Type: model.EventAdded, Object: model.Manifest{
		"metadata": map[string]interface{}{"name": "old", "namespace": "demo"},
	}}
	events <- model.WatchEvent{Type: model.EventDeleted, Object: model.Manifest{
		"metadata": map[string]interface{}{"name": "old", "namespace": "demo"},
	}}
	events <- model.WatchEvent{Type: model.EventCancelled}
	close(events)

	// -- When
	//
	end := t.tracker.Track(res, events)

	// -- Then
	//
	t.Equal(model.EventCancelled, end)

	tracked := t.db.Manifests(model.KindService)
	t.Require().Len(tracked, 1)

	// The tracker stamps the type meta that single watch items lack.
	t.Equal(model.KindService, tracked["demo/nginx"]["kind"])
	t.Equal("v1", tracked["demo/nginx"]["apiVersion"])
}

func (t *TrackerTestSuite) TestLeavesDeliveredObjectUntouched() {
	// -- Given
	//
	res := model.DefaultWatchedResources()[model.KindService]
	delivered := model.Manifest{
		"metadata": map[string]interface{}{"name": "nginx", "namespace": "demo"},
	}
	events := make(chan model.WatchEvent, 2)
	events <- model.WatchEvent{Type: model.EventAdded, Object: delivered}
	events <- model.WatchEvent{Type: model.EventCancelled}
	close(events)

	// -- When
	//
	t.tracker.Track(res, events)

	// -- Then
	//
	// The watcher retains the delivered object in its own state; stamping
	// happens on a copy.
	t.NotContains(delivered, "kind")
	t.NotContains(delivered, "apiVersion")
	t.Equal(model.KindService, t.db.Manifests(model.KindService)["demo/nginx"]["kind"])
}

func (t *TrackerTestSuite) TestChannelCloseWithoutSentinelCountsAsFailure() {
	// -- Given
	//
	res := model.DefaultWatchedResources()[model.KindService]
	events := make(chan model.WatchEvent)
	close(events)

	// -- When
	//
	end := t.tracker.Track(res, events)

	// -- Then
	//
	t.Equal(model.EventFailed, end)
}

func TestTrackerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

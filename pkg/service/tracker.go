package service

import (
	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
)

const TrackerServiceKey = "TrackerService"

// TrackerService drains a watcher's event channel into the database. It is
// the only writer of tracked manifests.
type TrackerService interface {
	// Track consumes events until the channel closes and returns the
	// sentinel that ended the stream. A channel that closes without a
	// sentinel counts as failed.
	Track(res *model.WatchedResource, events <-chan model.WatchEvent) model.EventType
}

type trackerService struct {
	Database database.Database `inject:"Database"`
}

func (t *trackerService) Track(res *model.WatchedResource, events <-chan model.WatchEvent) model.EventType {
	logger := log.WithField("kind", res.Kind)

	end := model.EventFailed
	for event := range events {
		if event.Sentinel() {
			end = event.Type
			continue
		}

		switch event.Type {
		case model.EventAdded, model.EventModified:
			// Copy before stamping: the watcher keeps the delivered object
			// in its own state and must never see tracker mutations.
			manifest := model.DeepCopyManifest(event.Object)
			// Single list items come without their type meta. Stamp it so
			// every tracked manifest is self describing.
			manifest["kind"] = res.Kind
			manifest["apiVersion"] = res.APIVersion
			t.Database.Upsert(res.Kind, manifest)
		case model.EventDeleted:
			t.Database.Remove(res.Kind, event.Object)
		default:
			logger.WithField("type", event.Type).Warn("Dropping unexpected watch event")
		}
	}

	logger.WithField("end", end).Info("Watch stream ended")
	return end
}

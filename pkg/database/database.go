package database

import (
	"sort"
	"sync"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/kubeutil"
	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
)

// Database is the in-memory mirror of cluster truth. It indexes manifests
// twice: globally by resource kind and per app by (name, env). The app
// scoped view is always a filtered copy of the global one; Upsert and
// Remove are the only write path and keep the two in lock step. The whole
// store is rebuildable at any time by re-listing, nothing is persisted.
type Database interface {
	// Upsert and Remove are driven exclusively by consumed watch events.
	Upsert(kind string, manifest model.Manifest)
	Remove(kind string, manifest model.Manifest)

	// Manifests returns a deep copy of all tracked manifests of one kind.
	Manifests(kind string) map[string]model.Manifest

	CreateApp(info model.AppInfo) error
	DeleteApp(key model.AppKey) error
	GetApp(key model.AppKey) (model.AppInfo, error)
	SetAppInfo(info model.AppInfo) error

	// AppResources returns a deep copy of the app scoped kind -> manifests
	// view.
	AppResources(key model.AppKey) (map[string]*model.WatchedResource, error)

	Overview() []model.AppEnvOverview
}

type Spec struct {
	ManagedBy string
	EnvLabel  string
}

func NewDatabase(spec Spec) Database {
	return &database{
		managedBy: spec.ManagedBy,
		envLabel:  spec.EnvLabel,
		resources: model.DefaultWatchedResources(),
		apps:      map[model.AppKey]*appEntry{},
	}
}

type appEntry struct {
	Info      model.AppInfo
	Resources map[string]*model.WatchedResource
}

type database struct {
	managedBy string
	envLabel  string

	lock      sync.RWMutex
	resources map[string]*model.WatchedResource
	apps      map[model.AppKey]*appEntry
}

func (d *database) Upsert(kind string, manifest model.Manifest) {
	key, _, err := model.ManifestKey(manifest)
	if err != nil {
		log.WithError(err).WithField("kind", kind).Debug("Dropping manifest without key")
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	res, ok := d.resources[kind]
	if !ok {
		log.WithField("kind", kind).Error("Bug: upsert for unwatched kind")
		return
	}
	res.Manifests[key] = manifest

	meta, ok := kubeutil.GetMetaInfo(d.managedBy, d.envLabel, manifest)
	if !ok {
		return
	}
	if entry, ok := d.apps[meta.Key()]; ok {
		entry.Resources[kind].Manifests[key] = manifest
	}
}

func (d *database) Remove(kind string, manifest model.Manifest) {
	key, _, err := model.ManifestKey(manifest)
	if err != nil {
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if res, ok := d.resources[kind]; ok {
		delete(res.Manifests, key)
	}

	meta, ok := kubeutil.GetMetaInfo(d.managedBy, d.envLabel, manifest)
	if !ok {
		return
	}
	if entry, ok := d.apps[meta.Key()]; ok {
		delete(entry.Resources[kind].Manifests, key)
	}
}

func (d *database) Manifests(kind string) map[string]model.Manifest {
	d.lock.RLock()
	defer d.lock.RUnlock()

	res, ok := d.resources[kind]
	if !ok {
		return map[string]model.Manifest{}
	}

	out := make(map[string]model.Manifest, len(res.Manifests))
	for k, v := range res.Manifests {
		out[k] = model.DeepCopyManifest(v)
	}
	return out
}

// CreateApp registers a new app and seeds its resource view with every
// tracked manifest that already belongs to it.
func (d *database) CreateApp(info model.AppInfo) error {
	key := info.Metadata.Key()

	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.apps[key]; ok {
		return except.NewError("app %s/%s already exists", except.ErrAlreadyExists, key.Name, key.Env)
	}

	entry := &appEntry{
		Info:      info,
		Resources: model.DefaultWatchedResources(),
	}

	for kind, res := range d.resources {
		for manKey, manifest := range res.Manifests {
			meta, ok := kubeutil.GetMetaInfo(d.managedBy, d.envLabel, manifest)
			if !ok || meta.Key() != key {
				continue
			}
			entry.Resources[kind].Manifests[manKey] = manifest
		}
	}

	d.apps[key] = entry
	return nil
}

func (d *database) DeleteApp(key model.AppKey) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.apps[key]; !ok {
		return except.NewError("app %s/%s not found", except.ErrNotFound, key.Name, key.Env)
	}
	delete(d.apps, key)
	return nil
}

func (d *database) GetApp(key model.AppKey) (model.AppInfo, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	entry, ok := d.apps[key]
	if !ok {
		return model.AppInfo{}, except.NewError("app %s/%s not found", except.ErrNotFound, key.Name, key.Env)
	}
	return entry.Info, nil
}

func (d *database) SetAppInfo(info model.AppInfo) error {
	key := info.Metadata.Key()

	d.lock.Lock()
	defer d.lock.Unlock()

	entry, ok := d.apps[key]
	if !ok {
		return except.NewError("app %s/%s not found", except.ErrNotFound, key.Name, key.Env)
	}
	entry.Info = info
	return nil
}

func (d *database) AppResources(key model.AppKey) (map[string]*model.WatchedResource, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	entry, ok := d.apps[key]
	if !ok {
		return nil, except.NewError("app %s/%s not found", except.ErrNotFound, key.Name, key.Env)
	}

	out := model.DefaultWatchedResources()
	for kind, res := range entry.Resources {
		for manKey, manifest := range res.Manifests {
			out[kind].Manifests[manKey] = model.DeepCopyManifest(manifest)
		}
	}
	return out, nil
}

func (d *database) Overview() []model.AppEnvOverview {
	d.lock.RLock()
	defer d.lock.RUnlock()

	envsByName := map[string][]string{}
	for key := range d.apps {
		envsByName[key.Name] = append(envsByName[key.Name], key.Env)
	}

	out := make([]model.AppEnvOverview, 0, len(envsByName))
	for name, envs := range envsByName {
		sort.Strings(envs)
		out = append(out, model.AppEnvOverview{Id: name, Name: name, Envs: envs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

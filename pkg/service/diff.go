package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
	jsonpatch "gomodules.xyz/jsonpatch/v2"
)

const DiffServiceKey = "DiffService"

// kindApplyOrder fixes the order in which resource kinds are created and
// patched. Deletes run in reverse so dependents go away before the things
// they depend on.
var kindApplyOrder = []string{
	model.KindNamespace,
	model.KindService,
	model.KindDeployment,
	model.KindVirtualService,
	model.KindDestinationRule,
}

// volatileMetadataFields are rewritten by the API server on every write and
// must never leak into a diff.
var volatileMetadataFields = []string{
	"resourceVersion",
	"uid",
	"creationTimestamp",
	"managedFields",
	"generation",
	"selfLink",
}

// DiffService computes the operations that transition the observed cluster
// state into the desired one. The diff is purely functional: no cluster
// access, no side effects.
type DiffService interface {
	Diff(desired, observed map[string]*model.WatchedResource) (model.DeploymentPlan, error)
}

type diffService struct {
}

func (d *diffService) Diff(desired, observed map[string]*model.WatchedResource) (model.DeploymentPlan, error) {
	plan := model.DeploymentPlan{}

	for _, kind := range kindApplyOrder {
		want := manifestsOf(desired, kind)
		have := manifestsOf(observed, kind)

		for _, key := range sortedKeys(want) {
			manifest := want[key]
			meta, err := manifestMeta(manifest)
			if err != nil {
				return plan, err
			}

			current, exists := have[key]
			if !exists {
				plan.Create = append(plan.Create, model.DeltaCreate{
					URL:      collectionURL(desired[kind].Path, meta.Namespace),
					Meta:     meta,
					Manifest: manifest,
				})
				continue
			}

			diff, equal, err := manifestDiff(current, manifest)
			if err != nil {
				return plan, err
			}
			if equal {
				continue
			}
			plan.Patch = append(plan.Patch, model.DeltaPatch{
				URL:  resourceURL(desired[kind].Path, meta.Namespace, meta.Name),
				Meta: meta,
				Diff: diff,
			})
		}

		for _, key := range sortedKeys(have) {
			if _, wanted := want[key]; wanted {
				continue
			}
			manifest := have[key]
			meta, err := manifestMeta(manifest)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("Skipping malformed tracked manifest")
				continue
			}
			plan.Delete = append(plan.Delete, model.DeltaDelete{
				URL:      resourceURL(observed[kind].Path, meta.Namespace, meta.Name),
				Meta:     meta,
				Manifest: manifest,
			})
		}
	}

	// Deletes in reverse kind order.
	for i, j := 0, len(plan.Delete)-1; i < j; i, j = i+1, j-1 {
		plan.Delete[i], plan.Delete[j] = plan.Delete[j], plan.Delete[i]
	}

	return plan, nil
}

func manifestsOf(resources map[string]*model.WatchedResource, kind string) map[string]model.Manifest {
	if resources == nil {
		return nil
	}
	res, ok := resources[kind]
	if !ok {
		return nil
	}
	return res.Manifests
}

func sortedKeys(manifests map[string]model.Manifest) []string {
	keys := make([]string, 0, len(manifests))
	for k := range manifests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func manifestMeta(manifest model.Manifest) (model.ManifestMeta, error) {
	meta := model.ManifestMeta{}
	meta.APIVersion, _ = manifest["apiVersion"].(string)
	meta.Kind, _ = manifest["kind"].(string)
	metadata, _ := manifest["metadata"].(map[string]interface{})
	if metadata != nil {
		meta.Name, _ = metadata["name"].(string)
		meta.Namespace, _ = metadata["namespace"].(string)
	}
	if meta.Kind == "" || meta.Name == "" {
		return meta, fmt.Errorf("manifest lacks kind or name")
	}
	return meta, nil
}

// manifestDiff returns the RFC 6902 patch from `current` to `want` with
// server-owned volatile fields removed from both sides first.
func manifestDiff(current, want model.Manifest) ([]jsonpatch.Operation, bool, error) {
	a, err := json.Marshal(stripVolatile(current))
	if err != nil {
		return nil, false, err
	}
	b, err := json.Marshal(stripVolatile(want))
	if err != nil {
		return nil, false, err
	}
	ops, err := jsonpatch.CreatePatch(a, b)
	if err != nil {
		return nil, false, err
	}
	return ops, len(ops) == 0, nil
}

func stripVolatile(manifest model.Manifest) model.Manifest {
	out := model.DeepCopyManifest(manifest)
	delete(out, "status")
	if metadata, ok := out["metadata"].(map[string]interface{}); ok {
		for _, field := range volatileMetadataFields {
			delete(metadata, field)
		}
	}
	return out
}

// collectionURL is the POST target of a namespaced resource collection, eg
// `/api/v1/namespaces/default/services`.
func collectionURL(listPath, namespace string) string {
	idx := strings.LastIndex(listPath, "/")
	prefix, plural := listPath[:idx], listPath[idx+1:]
	if namespace == "" {
		return listPath
	}
	return fmt.Sprintf("%s/namespaces/%s/%s", prefix, namespace, plural)
}

func resourceURL(listPath, namespace, name string) string {
	return collectionURL(listPath, namespace) + "/" + name
}

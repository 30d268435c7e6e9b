/*
   Copyright 2026 Splunk Inc.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package store holds the simulated cluster state: a typed, namespace-aware
// registry of unstructured objects with resource version allocation,
// optimistic concurrency checks and synchronously maintained field indexes.
// The store is the single source of truth; every object that crosses the
// package boundary is a deep copy.
package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gobuffalo/flect"
	"github.com/jonboulle/clockwork"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/splunk/kubesim/registry"
)

// Hint is an equality clause a caller already knows to be index-backed.
// The store uses hints to narrow the candidate set before running the full
// match predicate.
type Hint struct {
	Path  string
	Value string
}

// Matcher is the predicate applied to candidate objects during a list.
type Matcher func(obj *unstructured.Unstructured) bool

type gvkIndex struct {
	resource schema.GroupResource
	indexers map[string]registry.Indexer
	values   map[string]map[string]map[Key]bool // path -> value -> keys
}

// Store is the in-memory object store. It is safe for concurrent use; every
// operation runs its read-mutate-commit sequence under one exclusive lock.
type Store struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	step     time.Duration
	rv       uint64
	objects  map[Key]*unstructured.Unstructured
	tracking map[schema.GroupVersionKind]*gvkIndex
}

// New returns an empty store using the supplied clock for timestamps. When
// step is non-zero and the clock is a fake, the clock advances by step on
// every observation so timestamps are distinct and fully deterministic.
func New(clock clockwork.Clock, step time.Duration) *Store {
	return &Store{
		clock:    clock,
		step:     step,
		objects:  map[Key]*unstructured.Unstructured{},
		tracking: map[schema.GroupVersionKind]*gvkIndex{},
	}
}

// Track declares a group version kind to the store along with its REST
// resource (for error messages) and custom field indexers. Name and namespace
// indexes are always maintained, declared or not.
func (s *Store) Track(gvk schema.GroupVersionKind, resource schema.GroupResource, indexers map[string]registry.Indexer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.ensureIndex(gvk)
	idx.resource = resource
	for path, fn := range indexers {
		idx.indexers[path] = fn
	}
}

func (s *Store) ensureIndex(gvk schema.GroupVersionKind) *gvkIndex {
	idx := s.tracking[gvk]
	if idx == nil {
		idx = &gvkIndex{
			resource: schema.GroupResource{Group: gvk.Group, Resource: flect.Pluralize(strings.ToLower(gvk.Kind))},
			indexers: map[string]registry.Indexer{
				"metadata.name": func(obj *unstructured.Unstructured) []string {
					return []string{obj.GetName()}
				},
				"metadata.namespace": func(obj *unstructured.Unstructured) []string {
					return []string{obj.GetNamespace()}
				},
			},
			values: map[string]map[string]map[Key]bool{},
		}
		s.tracking[gvk] = idx
	}
	return idx
}

func (s *Store) groupResource(gvk schema.GroupVersionKind) schema.GroupResource {
	if idx, ok := s.tracking[gvk]; ok {
		return idx.resource
	}
	return schema.GroupResource{Group: gvk.Group, Resource: flect.Pluralize(strings.ToLower(gvk.Kind))}
}

// Now returns the current simulated time, stepping a fake clock forward so
// repeated observations remain strictly ordered.
func (s *Store) Now() metav1.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func (s *Store) now() metav1.Time {
	t := s.clock.Now()
	if fc, ok := s.clock.(clockwork.FakeClock); ok && s.step > 0 {
		fc.Advance(s.step)
	}
	return metav1.NewTime(t)
}

// CurrentRV returns the resource version of the most recent successful write,
// or "0" if nothing has been written yet.
func (s *Store) CurrentRV() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatUint(s.rv, 10)
}

// Get returns a copy of the object at key.
func (s *Store) Get(key Key) (*unstructured.Unstructured, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, apierrors.NewNotFound(s.groupResource(key.GVK), key.Name)
	}
	return obj.DeepCopy(), nil
}

// Insert adds a new object under key, assigning the next resource version.
// It returns a copy of the stored object.
func (s *Store) Insert(key Key, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkRequired(key, obj); err != nil {
		return nil, err
	}
	if _, ok := s.objects[key]; ok {
		return nil, apierrors.NewAlreadyExists(s.groupResource(key.GVK), key.Name)
	}
	stored := obj.DeepCopy()
	s.commit(key, stored)
	return stored.DeepCopy(), nil
}

// Replace swaps the object at key for a new one, assigning the next resource
// version. When expectedRV is non-empty it must match the stored object's
// current resource version or the write fails with a conflict.
func (s *Store) Replace(key Key, obj *unstructured.Unstructured, expectedRV string) (*unstructured.Unstructured, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.objects[key]
	if !ok {
		return nil, apierrors.NewNotFound(s.groupResource(key.GVK), key.Name)
	}
	if err := s.checkRV(key, prev, expectedRV); err != nil {
		return nil, err
	}
	if err := checkRequired(key, obj); err != nil {
		return nil, err
	}
	stored := obj.DeepCopy()
	s.commit(key, stored)
	return stored.DeepCopy(), nil
}

// Remove deletes the object at key and returns its prior state. When
// expectedRV is non-empty it is checked the same way as for Replace.
func (s *Store) Remove(key Key, expectedRV string) (*unstructured.Unstructured, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.objects[key]
	if !ok {
		return nil, apierrors.NewNotFound(s.groupResource(key.GVK), key.Name)
	}
	if err := s.checkRV(key, prev, expectedRV); err != nil {
		return nil, err
	}
	s.dropFromIndexes(key, prev)
	delete(s.objects, key)
	s.rv++
	return prev, nil
}

// List returns copies of all objects of the supplied type, optionally
// restricted to one namespace (blank means across all namespaces), narrowed
// by index hints and filtered by the match predicate. The second return value
// is the store's current resource version. Results are ordered by namespace,
// then name.
func (s *Store) List(gvk schema.GroupVersionKind, namespace string, hints []Hint, matches Matcher) ([]*unstructured.Unstructured, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []Key
	if keys, ok := s.keysFromHints(gvk, hints); ok {
		candidates = keys
	} else {
		for key := range s.objects {
			if key.GVK == gvk {
				candidates = append(candidates, key)
			}
		}
	}

	var ret []*unstructured.Unstructured
	for _, key := range candidates {
		if namespace != "" && key.Namespace != namespace {
			continue
		}
		obj, ok := s.objects[key]
		if !ok {
			continue
		}
		if matches != nil && !matches(obj) {
			continue
		}
		ret = append(ret, obj.DeepCopy())
	}
	sortObjects(ret)
	return ret, strconv.FormatUint(s.rv, 10)
}

// Snapshot returns a copy of every stored object in a stable order: group,
// kind, namespace, name. Intended for test assertions.
func (s *Store) Snapshot() []*unstructured.Unstructured {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]*unstructured.Unstructured, 0, len(s.objects))
	for _, obj := range s.objects {
		ret = append(ret, obj.DeepCopy())
	}
	sort.Slice(ret, func(i, j int) bool {
		a, b := ret[i], ret[j]
		ag, bg := a.GroupVersionKind(), b.GroupVersionKind()
		if ag.Group != bg.Group {
			return ag.Group < bg.Group
		}
		if ag.Kind != bg.Kind {
			return ag.Kind < bg.Kind
		}
		if a.GetNamespace() != b.GetNamespace() {
			return a.GetNamespace() < b.GetNamespace()
		}
		return a.GetName() < b.GetName()
	})
	return ret
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// IndexedPaths returns the field paths that are index-backed for the type,
// in sorted order.
func (s *Store) IndexedPaths(gvk schema.GroupVersionKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.ensureIndex(gvk)
	paths := make([]string, 0, len(idx.indexers))
	for p := range idx.indexers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *Store) checkRV(key Key, stored *unstructured.Unstructured, expectedRV string) error {
	if expectedRV == "" {
		return nil
	}
	current := stored.GetResourceVersion()
	if current != expectedRV {
		return apierrors.NewConflict(s.groupResource(key.GVK), key.Name,
			fmt.Errorf("the object has been modified; please apply your changes to the latest version and try again"))
	}
	return nil
}

// commit assigns the next resource version to obj, writes it under key and
// refreshes the indexes. The counter advances strictly on successful writes.
func (s *Store) commit(key Key, obj *unstructured.Unstructured) {
	if prev, ok := s.objects[key]; ok {
		s.dropFromIndexes(key, prev)
	}
	s.rv++
	obj.SetResourceVersion(strconv.FormatUint(s.rv, 10))
	s.objects[key] = obj
	s.addToIndexes(key, obj)
}

func (s *Store) addToIndexes(key Key, obj *unstructured.Unstructured) {
	idx := s.ensureIndex(key.GVK)
	for path, fn := range idx.indexers {
		byValue := idx.values[path]
		if byValue == nil {
			byValue = map[string]map[Key]bool{}
			idx.values[path] = byValue
		}
		for _, v := range fn(obj) {
			keys := byValue[v]
			if keys == nil {
				keys = map[Key]bool{}
				byValue[v] = keys
			}
			keys[key] = true
		}
	}
}

func (s *Store) dropFromIndexes(key Key, obj *unstructured.Unstructured) {
	idx := s.ensureIndex(key.GVK)
	for path, fn := range idx.indexers {
		byValue := idx.values[path]
		if byValue == nil {
			continue
		}
		for _, v := range fn(obj) {
			if keys := byValue[v]; keys != nil {
				delete(keys, key)
				if len(keys) == 0 {
					delete(byValue, v)
				}
			}
		}
	}
}

// keysFromHints intersects the key sets behind every index-backed hint. The
// second return value is false when no hint maps to an index, in which case
// the caller falls back to a scan.
func (s *Store) keysFromHints(gvk schema.GroupVersionKind, hints []Hint) ([]Key, bool) {
	idx := s.tracking[gvk]
	if idx == nil {
		return nil, false
	}
	var result map[Key]bool
	used := false
	for _, h := range hints {
		if _, ok := idx.indexers[h.Path]; !ok {
			continue
		}
		used = true
		keys := idx.values[h.Path][h.Value]
		if len(keys) == 0 {
			return nil, true
		}
		if result == nil {
			result = map[Key]bool{}
			for k := range keys {
				result[k] = true
			}
			continue
		}
		for k := range result {
			if !keys[k] {
				delete(result, k)
			}
		}
	}
	if !used {
		return nil, false
	}
	ret := make([]Key, 0, len(result))
	for k := range result {
		ret = append(ret, k)
	}
	return ret, true
}

func checkRequired(key Key, obj *unstructured.Unstructured) error {
	var errs field.ErrorList
	if obj.GetAPIVersion() == "" {
		errs = append(errs, field.Required(field.NewPath("apiVersion"), ""))
	}
	if obj.GetKind() == "" {
		errs = append(errs, field.Required(field.NewPath("kind"), ""))
	}
	if obj.GetName() == "" {
		errs = append(errs, field.Required(field.NewPath("metadata", "name"), ""))
	}
	if !key.ClusterScoped() && obj.GetNamespace() == "" {
		errs = append(errs, field.Required(field.NewPath("metadata", "namespace"), ""))
	}
	if len(errs) > 0 {
		return apierrors.NewInvalid(key.GVK.GroupKind(), key.Name, errs)
	}
	return nil
}

func sortObjects(objs []*unstructured.Unstructured) {
	sort.Slice(objs, func(i, j int) bool {
		if objs[i].GetNamespace() != objs[j].GetNamespace() {
			return objs[i].GetNamespace() < objs[j].GetNamespace()
		}
		return objs[i].GetName() < objs[j].GetName()
	})
}

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

// Package registry maps group version kinds to the metadata the simulator
// needs to serve them: scope, list kind, REST resource name, enabled
// subresources and custom field indexers. Well-known Kubernetes types are
// pre-registered; everything else is declared through the builder.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobuffalo/flect"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// SubresourceStatus is the only subresource the simulator understands.
const SubresourceStatus = "status"

// Scope indicates whether objects of a registered type live inside a namespace.
type Scope string

// Supported scopes.
const (
	NamespaceScoped Scope = "Namespaced"
	ClusterScoped   Scope = "Cluster"
)

// Indexer extracts zero or more index values for a registered field path
// from an object. Indexers must be pure functions.
type Indexer func(obj *unstructured.Unstructured) []string

// Registration declares a group version kind to the simulator.
// ListKind and Resource may be left blank and are then derived from the kind.
type Registration struct {
	GVK          schema.GroupVersionKind
	Scope        Scope
	ListKind     string             // defaults to Kind + "List"
	Resource     string             // plural REST name, defaults to the pluralized lowercase kind
	Subresources []string           // subset of {"status"}
	Indexers     map[string]Indexer // field path -> extractor
}

// Descriptor is the resolved, normalized form of a registration.
type Descriptor struct {
	GVK          schema.GroupVersionKind
	Scope        Scope
	ListKind     string
	Resource     string
	subresources map[string]bool
	indexers     map[string]Indexer
}

// Namespaced returns true if objects of this type live inside a namespace.
func (d *Descriptor) Namespaced() bool {
	return d.Scope == NamespaceScoped
}

// HasStatus returns true if the status subresource is enabled for this type.
func (d *Descriptor) HasStatus() bool {
	return d.subresources[SubresourceStatus]
}

// Subresources returns the sorted list of enabled subresources.
func (d *Descriptor) Subresources() []string {
	ret := lo.Keys(d.subresources)
	sort.Strings(ret)
	return ret
}

// Indexer returns the custom indexer registered for the supplied field path,
// if any.
func (d *Descriptor) Indexer(path string) (Indexer, bool) {
	fn, ok := d.indexers[path]
	return fn, ok
}

// IndexedPaths returns the sorted field paths that have custom indexers.
func (d *Descriptor) IndexedPaths() []string {
	ret := lo.Keys(d.indexers)
	sort.Strings(ret)
	return ret
}

// Indexers returns a copy of the custom indexer map.
func (d *Descriptor) Indexers() map[string]Indexer {
	ret := make(map[string]Indexer, len(d.indexers))
	for p, fn := range d.indexers {
		ret[p] = fn
	}
	return ret
}

// GroupResource returns the group resource for the descriptor, as needed for
// API error construction.
func (d *Descriptor) GroupResource() schema.GroupResource {
	return schema.GroupResource{Group: d.GVK.Group, Resource: d.Resource}
}

// GroupVersionResource returns the full group version resource.
func (d *Descriptor) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: d.GVK.Group, Version: d.GVK.Version, Resource: d.Resource}
}

// Registry holds descriptors for every type the simulator serves.
// It is built once and read-only afterwards.
type Registry struct {
	byGVK      map[schema.GroupVersionKind]*Descriptor
	byResource map[schema.GroupVersionResource]*Descriptor
}

// New returns a registry pre-loaded with the well-known Kubernetes types.
func New() *Registry {
	r := &Registry{
		byGVK:      map[schema.GroupVersionKind]*Descriptor{},
		byResource: map[schema.GroupVersionResource]*Descriptor{},
	}
	for _, reg := range wellKnown {
		if err := r.Register(reg); err != nil {
			panic(fmt.Errorf("register well-known type %s: %v", reg.GVK, err))
		}
	}
	return r
}

func normalize(reg Registration) (*Descriptor, error) {
	gvk := reg.GVK
	if gvk.Kind == "" || gvk.Version == "" {
		return nil, fmt.Errorf("registration for %s needs at least a version and kind", gvk)
	}
	scope := reg.Scope
	if scope == "" {
		scope = NamespaceScoped
	}
	if scope != NamespaceScoped && scope != ClusterScoped {
		return nil, fmt.Errorf("registration for %s has unknown scope %q", gvk, scope)
	}
	listKind := reg.ListKind
	if listKind == "" {
		listKind = gvk.Kind + "List"
	}
	resource := reg.Resource
	if resource == "" {
		resource = flect.Pluralize(strings.ToLower(gvk.Kind))
	}
	subs := map[string]bool{}
	for _, s := range reg.Subresources {
		if s != SubresourceStatus {
			return nil, fmt.Errorf("registration for %s declares unsupported subresource %q", gvk, s)
		}
		subs[s] = true
	}
	indexers := map[string]Indexer{}
	for path, fn := range reg.Indexers {
		if fn == nil {
			return nil, fmt.Errorf("registration for %s has a nil indexer for path %q", gvk, path)
		}
		indexers[path] = fn
	}
	return &Descriptor{
		GVK:          gvk,
		Scope:        scope,
		ListKind:     listKind,
		Resource:     resource,
		subresources: subs,
		indexers:     indexers,
	}, nil
}

// equivalent reports whether a repeat registration is consistent with the
// descriptor already in place. Indexer functions are compared by path name
// only since function values have no useful equality.
func (d *Descriptor) equivalent(other *Descriptor) bool {
	if d.GVK != other.GVK || d.Scope != other.Scope || d.ListKind != other.ListKind || d.Resource != other.Resource {
		return false
	}
	if len(d.subresources) != len(other.subresources) {
		return false
	}
	for s := range d.subresources {
		if !other.subresources[s] {
			return false
		}
	}
	if len(d.indexers) != len(other.indexers) {
		return false
	}
	for p := range d.indexers {
		if _, ok := other.indexers[p]; !ok {
			return false
		}
	}
	return true
}

// Register adds a type to the registry. Registration is idempotent: a repeat
// registration must be consistent with the existing one in every field or an
// error is returned.
func (r *Registry) Register(reg Registration) error {
	d, err := normalize(reg)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if prev, ok := r.byGVK[d.GVK]; ok {
		if !prev.equivalent(d) {
			return fmt.Errorf("invalid configuration: conflicting registration for %s", d.GVK)
		}
		return nil
	}
	gvr := d.GroupVersionResource()
	if prev, ok := r.byResource[gvr]; ok && prev.GVK != d.GVK {
		return fmt.Errorf("invalid configuration: resource %s already registered for %s", gvr, prev.GVK)
	}
	r.byGVK[d.GVK] = d
	r.byResource[gvr] = d
	return nil
}

// EnableStatus turns on the status subresource for an already registered type.
func (r *Registry) EnableStatus(gvk schema.GroupVersionKind) error {
	d, ok := r.byGVK[gvk]
	if !ok {
		return fmt.Errorf("invalid configuration: enable status for unregistered type %s", gvk)
	}
	d.subresources[SubresourceStatus] = true
	return nil
}

// Lookup returns the descriptor for the supplied group version kind.
func (r *Registry) Lookup(gvk schema.GroupVersionKind) (*Descriptor, bool) {
	d, ok := r.byGVK[gvk]
	return d, ok
}

// LookupResource returns the descriptor for the supplied group, version and
// plural resource name. The request shim resolves path segments through this.
func (r *Registry) LookupResource(gvr schema.GroupVersionResource) (*Descriptor, bool) {
	d, ok := r.byResource[gvr]
	return d, ok
}

// Descriptors returns all descriptors sorted by group, version and kind.
func (r *Registry) Descriptors() []*Descriptor {
	ret := lo.Values(r.byGVK)
	sort.Slice(ret, func(i, j int) bool {
		a, b := ret[i].GVK, ret[j].GVK
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Kind < b.Kind
	})
	return ret
}

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

// Package kubesim simulates the Kubernetes API surface in memory for
// controller and operator unit tests. A Builder assembles the simulated
// cluster (registered types, seed objects, interceptors, optional schema
// validation, clock) and produces a Client handle whose verbs behave like
// the real API server for get, list, create, update, patch and delete,
// including optimistic concurrency, status subresources, the three patch
// dialects and selector-based filtering.
package kubesim

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/splunk/kubesim/engine"
	"github.com/splunk/kubesim/patch"
	"github.com/splunk/kubesim/registry"
	"github.com/splunk/kubesim/shim"
	"github.com/splunk/kubesim/store"
	"github.com/splunk/kubesim/validation"
)

// the default clock starts here and steps one second per observation so
// object timestamps are reproducible across runs
var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Builder assembles a simulated cluster. The zero value of every option is
// usable; a bare NewBuilder().Build() yields an empty cluster serving the
// well-known types.
type Builder struct {
	registrations []registry.Registration
	statusGVKs    []schema.GroupVersionKind
	seeds         []*unstructured.Unstructured
	interceptors  []*engine.Interceptor
	schemaDoc     []byte
	clock         clockwork.Clock
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// RegisterResource declares a group version kind beyond the well-known set.
func (b *Builder) RegisterResource(reg registry.Registration) *Builder {
	b.registrations = append(b.registrations, reg)
	return b
}

// EnableStatusSubresource opts the type into status subresource routing:
// status writes touch only the status subtree and regular writes preserve it.
func (b *Builder) EnableStatusSubresource(gvk schema.GroupVersionKind) *Builder {
	b.statusGVKs = append(b.statusGVKs, gvk)
	return b
}

// Seed inserts pre-existing objects into the cluster. Seeding bypasses
// interceptors and validation but assigns server metadata exactly like
// create.
func (b *Builder) Seed(objs ...*unstructured.Unstructured) *Builder {
	b.seeds = append(b.seeds, objs...)
	return b
}

// SeedMap is Seed for already-parsed document trees.
func (b *Builder) SeedMap(docs ...map[string]interface{}) *Builder {
	for _, d := range docs {
		b.seeds = append(b.seeds, &unstructured.Unstructured{Object: d})
	}
	return b
}

// Intercept appends an interceptor to the chain. Interceptors run in
// registration order on every verb they implement.
func (b *Builder) Intercept(i *engine.Interceptor) *Builder {
	b.interceptors = append(b.interceptors, i)
	return b
}

// Schema enables OpenAPI validation of mutating verbs against the supplied
// swagger 2.0 document. The same document informs strategic merge patches.
func (b *Builder) Schema(doc []byte) *Builder {
	b.schemaDoc = doc
	return b
}

// Clock injects the clock used for timestamps. The default is a fake clock
// stepped deterministically; inject clockwork.NewRealClock() for wall time.
func (b *Builder) Clock(c clockwork.Clock) *Builder {
	b.clock = c
	return b
}

// Build finalizes the configuration and returns the client handle. It fails
// on conflicting registrations, seed objects of unregistered types and
// schema documents that do not parse.
func (b *Builder) Build() (*Client, error) {
	reg := registry.New()
	for _, r := range b.registrations {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	for _, gvk := range b.statusGVKs {
		if err := reg.EnableStatus(gvk); err != nil {
			return nil, err
		}
	}

	var doc *validation.Document
	if b.schemaDoc != nil {
		var err error
		doc, err = validation.Parse(b.schemaDoc)
		if err != nil {
			return nil, errors.Wrap(err, "invalid configuration")
		}
	}

	clock := b.clock
	step := time.Duration(0)
	if clock == nil {
		clock = clockwork.NewFakeClockAt(defaultEpoch)
		step = time.Second
	}

	st := store.New(clock, step)
	for _, desc := range reg.Descriptors() {
		st.Track(desc.GVK, desc.GroupResource(), desc.Indexers())
	}

	eng := engine.New(reg, st, patch.New(doc), doc, b.interceptors)
	for _, obj := range b.seeds {
		if err := eng.Seed(obj); err != nil {
			return nil, errors.Wrapf(err, "seed object %s/%s", obj.GetNamespace(), obj.GetName())
		}
	}
	return &Client{eng: eng, shim: shim.New(reg, eng)}, nil
}

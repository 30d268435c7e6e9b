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

// Package engine dispatches the six supported verbs against the object
// store, routing every call through the interceptor chain and implementing
// the Kubernetes write semantics: optimistic concurrency, status subresource
// isolation, generation tracking and deletion with finalizer tombstones.
package engine

import (
	"context"
	"strings"

	"github.com/gobuffalo/flect"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/splunk/kubesim/patch"
	"github.com/splunk/kubesim/registry"
	"github.com/splunk/kubesim/store"
	"github.com/splunk/kubesim/validation"
)

// Verb is one of the six API verbs the engine serves.
type Verb string

// Supported verbs.
const (
	VerbGet    Verb = "get"
	VerbList   Verb = "list"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbPatch  Verb = "patch"
	VerbDelete Verb = "delete"
)

// Request is a fully parsed verb invocation. Interceptors see requests in
// this form; Current carries a read-consistent snapshot of the stored object
// at dispatch time for keyed verbs (nil when absent).
type Request struct {
	Verb              Verb
	GVK               schema.GroupVersionKind
	Namespace         string
	Name              string
	Subresource       string
	Object            *unstructured.Unstructured
	Patch             []byte
	PatchType         types.PatchType
	LabelSelector     string
	FieldSelector     string
	Preconditions     *metav1.Preconditions
	PropagationPolicy *metav1.DeletionPropagation
	DryRun            bool
	Current           *unstructured.Unstructured
}

// Response is the result of a verb. Get, create, update, patch and delete
// return an object; list returns items plus the list resource version.
type Response struct {
	Object          *unstructured.Unstructured
	Items           []*unstructured.Unstructured
	ResourceVersion string
}

// Engine executes verbs against the store.
type Engine struct {
	reg     *registry.Registry
	store   *store.Store
	patcher *patch.Engine
	doc     *validation.Document
	chain   []*Interceptor
}

// New returns an engine over the supplied collaborators. The validation
// document and the interceptor chain may be empty.
func New(reg *registry.Registry, st *store.Store, patcher *patch.Engine, doc *validation.Document, chain []*Interceptor) *Engine {
	return &Engine{reg: reg, store: st, patcher: patcher, doc: doc, chain: chain}
}

// Store returns the underlying object store, mainly for test assertions on
// final cluster state.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Do executes a verb. The interceptor chain runs first; the first
// interceptor returning a response short-circuits the store, the first
// returning an error aborts the call. Failed verbs never advance the
// resource version counter and never mutate the store.
func (e *Engine) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc, ok := e.reg.Lookup(req.GVK)
	if !ok {
		return nil, apierrors.NewNotFound(guessGroupResource(req.GVK), req.Name)
	}
	if req.Subresource != "" && req.Subresource != registry.SubresourceStatus {
		return nil, apierrors.NewNotFound(desc.GroupResource(), req.Name)
	}

	e.snapshotCurrent(desc, req)
	if resp, handled, err := e.runChain(ctx, req); handled {
		return resp, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Verb {
	case VerbGet:
		return e.get(desc, req)
	case VerbList:
		return e.list(desc, req)
	case VerbCreate:
		return e.create(desc, req)
	case VerbUpdate:
		return e.update(desc, req)
	case VerbPatch:
		return e.applyPatch(desc, req)
	case VerbDelete:
		return e.delete(desc, req)
	default:
		return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), string(req.Verb))
	}
}

// Seed inserts an object directly, bypassing interceptors and validation but
// assigning UID, timestamps, generation and resource version exactly like
// create. Used for builder-supplied fixtures.
func (e *Engine) Seed(obj *unstructured.Unstructured) error {
	gvk := obj.GroupVersionKind()
	desc, ok := e.reg.Lookup(gvk)
	if !ok {
		return apierrors.NewNotFound(guessGroupResource(gvk), obj.GetName())
	}
	key, err := e.keyFor(desc, obj.GetNamespace(), obj.GetName())
	if err != nil {
		return err
	}
	prepared := e.prepare(obj)
	_, err = e.store.Insert(key, prepared)
	return err
}

// keyFor builds the scope-correct key, rejecting namespace/scope mismatches.
func (e *Engine) keyFor(desc *registry.Descriptor, namespace, name string) (store.Key, error) {
	if desc.Namespaced() {
		if namespace == "" {
			return store.Key{}, apierrors.NewInvalid(desc.GVK.GroupKind(), name, field.ErrorList{
				field.Required(field.NewPath("metadata", "namespace"), "resource is namespace scoped"),
			})
		}
		return store.NamespacedKey(desc.GVK, namespace, name), nil
	}
	if namespace != "" {
		return store.Key{}, apierrors.NewInvalid(desc.GVK.GroupKind(), name, field.ErrorList{
			field.Forbidden(field.NewPath("metadata", "namespace"), "resource is cluster scoped"),
		})
	}
	return store.ClusterKey(desc.GVK, name), nil
}

// snapshotCurrent attaches the stored object, if any, to keyed requests so
// interceptors observe state consistent with dispatch time.
func (e *Engine) snapshotCurrent(desc *registry.Descriptor, req *Request) {
	switch req.Verb {
	case VerbGet, VerbUpdate, VerbPatch, VerbDelete:
	default:
		return
	}
	namespace, name := req.Namespace, req.Name
	if req.Object != nil {
		if name == "" {
			name = req.Object.GetName()
		}
		if namespace == "" {
			namespace = req.Object.GetNamespace()
		}
	}
	key, err := e.keyFor(desc, namespace, name)
	if err != nil {
		return
	}
	if obj, err := e.store.Get(key); err == nil {
		req.Current = obj
	}
}

func (e *Engine) validate(gvk schema.GroupVersionKind, obj *unstructured.Unstructured) error {
	if e.doc == nil {
		return nil
	}
	return e.doc.Validate(gvk, obj)
}

func guessGroupResource(gvk schema.GroupVersionKind) schema.GroupResource {
	return schema.GroupResource{Group: gvk.Group, Resource: flect.Pluralize(strings.ToLower(gvk.Kind))}
}

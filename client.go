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

package kubesim

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"

	"github.com/splunk/kubesim/engine"
	"github.com/splunk/kubesim/registry"
	"github.com/splunk/kubesim/shim"
)

// Client is the opaque handle to a simulated cluster. Its verbs fail with
// the same k8s.io/apimachinery/pkg/api/errors errors a real API server
// produces, so callers keep using apierrors.IsNotFound and friends.
type Client struct {
	eng  *engine.Engine
	shim *shim.Shim
}

// ListOptions carries the selectors of a list call.
type ListOptions struct {
	LabelSelector string
	FieldSelector string
}

// CreateOptions carries the options of a create call.
type CreateOptions struct {
	DryRun bool
}

// UpdateOptions carries the options of an update call.
type UpdateOptions struct {
	DryRun bool
}

// PatchOptions carries the options of a patch call.
type PatchOptions struct {
	DryRun bool
}

// DeleteOptions carries the options of a delete call. The propagation
// policy is accepted but has no cascading effect.
type DeleteOptions struct {
	Preconditions     *metav1.Preconditions
	PropagationPolicy *metav1.DeletionPropagation
	DryRun            bool
}

// List is the result of a list call.
type List struct {
	Items           []*unstructured.Unstructured
	ResourceVersion string
}

// Get returns the object of the supplied type at namespace/name. The
// namespace must be blank for cluster-scoped types.
func (c *Client) Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error) {
	resp, err := c.eng.Do(ctx, &engine.Request{Verb: engine.VerbGet, GVK: gvk, Namespace: namespace, Name: name})
	if err != nil {
		return nil, err
	}
	return resp.Object, nil
}

// List returns all objects of the supplied type matching the selectors. A
// blank namespace lists across all namespaces.
func (c *Client) List(ctx context.Context, gvk schema.GroupVersionKind, namespace string, opts ListOptions) (*List, error) {
	resp, err := c.eng.Do(ctx, &engine.Request{
		Verb:          engine.VerbList,
		GVK:           gvk,
		Namespace:     namespace,
		LabelSelector: opts.LabelSelector,
		FieldSelector: opts.FieldSelector,
	})
	if err != nil {
		return nil, err
	}
	return &List{Items: resp.Items, ResourceVersion: resp.ResourceVersion}, nil
}

// Create inserts a new object, assigning UID, timestamps, generation and
// resource version.
func (c *Client) Create(ctx context.Context, obj *unstructured.Unstructured, opts CreateOptions) (*unstructured.Unstructured, error) {
	resp, err := c.eng.Do(ctx, &engine.Request{
		Verb:   engine.VerbCreate,
		GVK:    obj.GroupVersionKind(),
		Object: obj,
		DryRun: opts.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return resp.Object, nil
}

// Update replaces an existing object. A non-empty resourceVersion on the
// input is the optimistic concurrency precondition.
func (c *Client) Update(ctx context.Context, obj *unstructured.Unstructured, opts UpdateOptions) (*unstructured.Unstructured, error) {
	return c.update(ctx, obj, "", opts)
}

// UpdateStatus replaces only the status subtree of an existing object when
// the type has the status subresource enabled; otherwise it behaves exactly
// like Update.
func (c *Client) UpdateStatus(ctx context.Context, obj *unstructured.Unstructured, opts UpdateOptions) (*unstructured.Unstructured, error) {
	return c.update(ctx, obj, registry.SubresourceStatus, opts)
}

func (c *Client) update(ctx context.Context, obj *unstructured.Unstructured, subresource string, opts UpdateOptions) (*unstructured.Unstructured, error) {
	resp, err := c.eng.Do(ctx, &engine.Request{
		Verb:        engine.VerbUpdate,
		GVK:         obj.GroupVersionKind(),
		Subresource: subresource,
		Object:      obj,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return resp.Object, nil
}

// Patch applies a patch document of the supplied dialect to the object at
// namespace/name.
func (c *Client) Patch(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, pt types.PatchType, data []byte, opts PatchOptions) (*unstructured.Unstructured, error) {
	return c.patch(ctx, gvk, namespace, name, "", pt, data, opts)
}

// PatchStatus is Patch against the status subresource.
func (c *Client) PatchStatus(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, pt types.PatchType, data []byte, opts PatchOptions) (*unstructured.Unstructured, error) {
	return c.patch(ctx, gvk, namespace, name, registry.SubresourceStatus, pt, data, opts)
}

func (c *Client) patch(ctx context.Context, gvk schema.GroupVersionKind, namespace, name, subresource string, pt types.PatchType, data []byte, opts PatchOptions) (*unstructured.Unstructured, error) {
	resp, err := c.eng.Do(ctx, &engine.Request{
		Verb:        engine.VerbPatch,
		GVK:         gvk,
		Namespace:   namespace,
		Name:        name,
		Subresource: subresource,
		PatchType:   pt,
		Patch:       data,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return resp.Object, nil
}

// Delete removes the object at namespace/name, or tombstones it when
// finalizers are present. It returns the removed or tombstoned object.
func (c *Client) Delete(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, opts DeleteOptions) (*unstructured.Unstructured, error) {
	resp, err := c.eng.Do(ctx, &engine.Request{
		Verb:              engine.VerbDelete,
		GVK:               gvk,
		Namespace:         namespace,
		Name:              name,
		Preconditions:     opts.Preconditions,
		PropagationPolicy: opts.PropagationPolicy,
		DryRun:            opts.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return resp.Object, nil
}

// Do executes a REST-shaped request against the shim. Errors are serialized
// into Status documents, matching what a client expects on the wire.
func (c *Client) Do(ctx context.Context, req shim.Request) shim.Response {
	return c.shim.Do(ctx, req)
}

// Snapshot returns a stable-ordered copy of every stored object, for test
// assertions on final cluster state.
func (c *Client) Snapshot() []*unstructured.Unstructured {
	return c.eng.Store().Snapshot()
}

// ResourceVersion returns the resource version of the most recent
// successful write.
func (c *Client) ResourceVersion() string {
	return c.eng.Store().CurrentRV()
}

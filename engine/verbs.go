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

package engine

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	apiequality "k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/splunk/kubesim/registry"
	"github.com/splunk/kubesim/selector"
	"github.com/splunk/kubesim/store"
)

func (e *Engine) get(desc *registry.Descriptor, req *Request) (*Response, error) {
	key, err := e.keyFor(desc, req.Namespace, req.Name)
	if err != nil {
		return nil, err
	}
	obj, err := e.store.Get(key)
	if err != nil {
		return nil, err
	}
	return &Response{Object: obj}, nil
}

func (e *Engine) list(desc *registry.Descriptor, req *Request) (*Response, error) {
	sel, err := selector.Compile(desc, req.LabelSelector, req.FieldSelector)
	if err != nil {
		return nil, err
	}
	namespace := req.Namespace
	if !desc.Namespaced() {
		namespace = ""
	}
	items, rv := e.store.List(desc.GVK, namespace, sel.Hints(), sel.Matches)
	return &Response{Items: items, ResourceVersion: rv}, nil
}

func (e *Engine) create(desc *registry.Descriptor, req *Request) (*Response, error) {
	if req.Object == nil {
		return nil, apierrors.NewBadRequest("create request has no object")
	}
	obj := req.Object.DeepCopy()
	if err := conformGVK(desc, obj); err != nil {
		return nil, err
	}
	if desc.Namespaced() && obj.GetNamespace() == "" {
		obj.SetNamespace(req.Namespace)
	}
	if req.Namespace != "" && obj.GetNamespace() != req.Namespace {
		return nil, apierrors.NewBadRequest("the namespace of the provided object does not match the namespace sent on the request")
	}
	key, err := e.keyFor(desc, obj.GetNamespace(), obj.GetName())
	if err != nil {
		return nil, err
	}
	if rv := obj.GetResourceVersion(); rv != "" {
		return nil, apierrors.NewInvalid(desc.GVK.GroupKind(), obj.GetName(), field.ErrorList{
			field.Invalid(field.NewPath("metadata", "resourceVersion"), rv, "resourceVersion may not be set on objects to be created"),
		})
	}
	if err := e.validate(desc.GVK, obj); err != nil {
		return nil, err
	}
	prepared := e.prepare(obj)
	if req.DryRun {
		return &Response{Object: prepared}, nil
	}
	stored, err := e.store.Insert(key, prepared)
	if err != nil {
		return nil, err
	}
	return &Response{Object: stored}, nil
}

func (e *Engine) update(desc *registry.Descriptor, req *Request) (*Response, error) {
	if req.Object == nil {
		return nil, apierrors.NewBadRequest("update request has no object")
	}
	obj := req.Object.DeepCopy()
	if err := conformGVK(desc, obj); err != nil {
		return nil, err
	}
	if req.Name != "" && obj.GetName() != req.Name {
		return nil, apierrors.NewBadRequest("the name of the provided object does not match the name sent on the request")
	}
	if desc.Namespaced() && obj.GetNamespace() == "" {
		obj.SetNamespace(req.Namespace)
	}
	key, err := e.keyFor(desc, obj.GetNamespace(), obj.GetName())
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Get(key)
	if err != nil {
		return nil, err
	}
	statusWrite := req.Subresource == registry.SubresourceStatus && desc.HasStatus()
	return e.applyUpdate(desc, key, stored, obj, statusWrite, obj.GetResourceVersion(), req.DryRun)
}

func (e *Engine) applyPatch(desc *registry.Descriptor, req *Request) (*Response, error) {
	if req.PatchType == types.ApplyPatchType {
		return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), "apply")
	}
	key, err := e.keyFor(desc, req.Namespace, req.Name)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Get(key)
	if err != nil {
		return nil, err
	}
	patched, err := e.patcher.Apply(req.PatchType, stored, req.Patch)
	if err != nil {
		return nil, err
	}
	statusWrite := req.Subresource == registry.SubresourceStatus && desc.HasStatus()
	return e.applyUpdate(desc, key, stored, patched, statusWrite, patched.GetResourceVersion(), req.DryRun)
}

// applyUpdate implements the shared commit semantics of update and patch:
// status subresource isolation, metadata preservation, generation tracking,
// optimistic concurrency and tombstone completion.
func (e *Engine) applyUpdate(desc *registry.Descriptor, key store.Key, stored, incoming *unstructured.Unstructured, statusWrite bool, expectedRV string, dryRun bool) (*Response, error) {
	var next *unstructured.Unstructured
	if statusWrite {
		// status writes replace only the status subtree
		next = stored.DeepCopy()
		copySubtree(incoming, next, "status")
	} else {
		next = incoming.DeepCopy()
		if desc.HasStatus() {
			// non-status writes must not alter status
			copySubtree(stored, next, "status")
		}
	}

	next.SetUID(stored.GetUID())
	next.SetCreationTimestamp(stored.GetCreationTimestamp())
	next.SetDeletionTimestamp(stored.GetDeletionTimestamp())

	generation := stored.GetGeneration()
	if !statusWrite && specChanged(stored, next) {
		generation++
	}
	next.SetGeneration(generation)

	if err := e.validate(desc.GVK, next); err != nil {
		return nil, err
	}

	// an update that clears the last finalizer on a tombstoned object
	// completes the deletion
	if stored.GetDeletionTimestamp() != nil && len(next.GetFinalizers()) == 0 {
		if dryRun {
			return &Response{Object: next}, nil
		}
		if _, err := e.store.Remove(key, expectedRV); err != nil {
			return nil, err
		}
		next.SetResourceVersion(e.store.CurrentRV())
		return &Response{Object: next}, nil
	}

	if dryRun {
		return &Response{Object: next}, nil
	}
	committed, err := e.store.Replace(key, next, expectedRV)
	if err != nil {
		return nil, err
	}
	return &Response{Object: committed}, nil
}

func (e *Engine) delete(desc *registry.Descriptor, req *Request) (*Response, error) {
	key, err := e.keyFor(desc, req.Namespace, req.Name)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.Get(key)
	if err != nil {
		return nil, err
	}
	expectedRV := ""
	if req.Preconditions != nil {
		if req.Preconditions.UID != nil && *req.Preconditions.UID != stored.GetUID() {
			return nil, apierrors.NewConflict(desc.GroupResource(), req.Name,
				errors.New("the UID in the precondition does not match the UID in record"))
		}
		if req.Preconditions.ResourceVersion != nil {
			expectedRV = *req.Preconditions.ResourceVersion
			if expectedRV != stored.GetResourceVersion() {
				return nil, apierrors.NewConflict(desc.GroupResource(), req.Name,
					errors.New("the ResourceVersion in the precondition does not match the ResourceVersion in record"))
			}
		}
	}

	// the propagation policy is accepted and recorded nowhere: there is no
	// owner reference garbage collection

	if len(stored.GetFinalizers()) > 0 {
		if stored.GetDeletionTimestamp() != nil {
			return &Response{Object: stored}, nil
		}
		tombstone := stored.DeepCopy()
		now := e.store.Now()
		tombstone.SetDeletionTimestamp(&now)
		if req.DryRun {
			return &Response{Object: tombstone}, nil
		}
		committed, err := e.store.Replace(key, tombstone, expectedRV)
		if err != nil {
			return nil, err
		}
		return &Response{Object: committed}, nil
	}

	if req.DryRun {
		return &Response{Object: stored}, nil
	}
	prev, err := e.store.Remove(key, expectedRV)
	if err != nil {
		return nil, err
	}
	return &Response{Object: prev}, nil
}

// prepare stamps the metadata the server owns on a new object.
func (e *Engine) prepare(obj *unstructured.Unstructured) *unstructured.Unstructured {
	ret := obj.DeepCopy()
	ret.SetUID(types.UID(uuid.NewString()))
	ret.SetCreationTimestamp(e.store.Now())
	ret.SetGeneration(1)
	ret.SetDeletionTimestamp(nil)
	return ret
}

// conformGVK defaults a blank apiVersion/kind from the descriptor and
// rejects bodies that disagree with the request target.
func conformGVK(desc *registry.Descriptor, obj *unstructured.Unstructured) error {
	if obj.GetAPIVersion() == "" {
		obj.SetAPIVersion(desc.GVK.GroupVersion().String())
	}
	if obj.GetKind() == "" {
		obj.SetKind(desc.GVK.Kind)
	}
	if obj.GroupVersionKind() != desc.GVK {
		return apierrors.NewBadRequest("the object's group version kind does not match the request target " + desc.GVK.String())
	}
	return nil
}

// copySubtree overwrites the named top-level subtree of dst with the one
// from src, removing it when src has none.
func copySubtree(src, dst *unstructured.Unstructured, name string) {
	value, ok := src.Object[name]
	if !ok {
		delete(dst.Object, name)
		return
	}
	dst.Object[name] = deepCopyValue(value)
}

// specChanged reports whether the two objects differ outside metadata and
// status, which is what drives generation.
func specChanged(a, b *unstructured.Unstructured) bool {
	return !apiequality.Semantic.DeepEqual(scrub(a), scrub(b))
}

func scrub(obj *unstructured.Unstructured) map[string]interface{} {
	ret := obj.DeepCopy().Object
	delete(ret, "metadata")
	delete(ret, "status")
	return ret
}

func deepCopyValue(v interface{}) interface{} {
	return runtime.DeepCopyJSONValue(v)
}

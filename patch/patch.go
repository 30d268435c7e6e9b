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

// Package patch applies the three patch dialects the API surface supports:
// RFC 6902 JSON Patch, RFC 7396 JSON Merge Patch and strategic merge patch.
// Strategic merge list metadata comes from a caller-supplied OpenAPI
// document when one covers the type, from struct tags for types registered
// in the client-go scheme otherwise, and degrades to a plain JSON merge
// when neither source knows the type.
package patch

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/strategicpatch"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/client-go/kubernetes/scheme"

	"github.com/splunk/kubesim/internal/sio"
	"github.com/splunk/kubesim/validation"
)

// Engine applies patches. The zero value degrades strategic merges for
// types outside the client-go scheme to plain JSON merges; supplying an
// OpenAPI document upgrades them for every type the document covers.
type Engine struct {
	doc *validation.Document
}

// New returns an engine using the supplied OpenAPI document as its preferred
// strategic merge metadata source. The document may be nil.
func New(doc *validation.Document) *Engine {
	return &Engine{doc: doc}
}

// Apply produces a new object by applying the patch document to the original.
// The original is never modified; callers own the result.
func (e *Engine) Apply(pt types.PatchType, original *unstructured.Unstructured, data []byte) (*unstructured.Unstructured, error) {
	gvk := original.GroupVersionKind()
	switch pt {
	case types.JSONPatchType:
		return e.applyJSONPatch(gvk, original, data)
	case types.MergePatchType:
		return e.applyMergePatch(gvk, original, data)
	case types.StrategicMergePatchType:
		return e.applyStrategicMergePatch(gvk, original, data)
	default:
		return nil, apierrors.NewBadRequest("unsupported patch type " + string(pt))
	}
}

func (e *Engine) applyJSONPatch(gvk schema.GroupVersionKind, original *unstructured.Unstructured, data []byte) (*unstructured.Unstructured, error) {
	p, err := jsonpatch.DecodePatch(data)
	if err != nil {
		return nil, invalidPatch(gvk, original.GetName(), err)
	}
	origJSON, err := runtime.Encode(unstructured.UnstructuredJSONScheme, original)
	if err != nil {
		return nil, errors.Wrap(err, "serialize original")
	}
	patched, err := p.Apply(origJSON)
	if err != nil {
		return nil, invalidPatch(gvk, original.GetName(), err)
	}
	return decode(patched)
}

func (e *Engine) applyMergePatch(gvk schema.GroupVersionKind, original *unstructured.Unstructured, data []byte) (*unstructured.Unstructured, error) {
	origJSON, err := runtime.Encode(unstructured.UnstructuredJSONScheme, original)
	if err != nil {
		return nil, errors.Wrap(err, "serialize original")
	}
	patched, err := jsonpatch.MergePatch(origJSON, data)
	if err != nil {
		return nil, invalidPatch(gvk, original.GetName(), err)
	}
	return decode(patched)
}

func (e *Engine) applyStrategicMergePatch(gvk schema.GroupVersionKind, original *unstructured.Unstructured, data []byte) (*unstructured.Unstructured, error) {
	lookup := e.lookupFor(gvk)
	if lookup == nil {
		// no list metadata available anywhere, merge semantics are the
		// documented fallback
		sio.Debugf("no patch metadata for %s, strategic merge degrades to JSON merge\n", gvk)
		return e.applyMergePatch(gvk, original, data)
	}
	var patchMap map[string]interface{}
	if err := json.Unmarshal(data, &patchMap); err != nil {
		return nil, invalidPatch(gvk, original.GetName(), err)
	}
	result, err := strategicpatch.StrategicMergeMapPatchUsingLookupPatchMeta(original.DeepCopy().Object, patchMap, lookup)
	if err != nil {
		return nil, invalidPatch(gvk, original.GetName(), err)
	}
	return &unstructured.Unstructured{Object: result}, nil
}

// lookupFor returns the best patch metadata source for the type, or nil when
// none is available.
func (e *Engine) lookupFor(gvk schema.GroupVersionKind) strategicpatch.LookupPatchMeta {
	if e.doc != nil {
		if s, ok := e.doc.SchemaFor(gvk); ok {
			return &openAPIMeta{name: gvk.Kind, schema: s, root: e.doc.Swagger()}
		}
	}
	versioned, err := scheme.Scheme.New(gvk)
	if err != nil {
		if !runtime.IsNotRegisteredError(err) {
			sio.Warnf("instantiate %s from scheme: %v\n", gvk, err)
		}
		return nil
	}
	lookup, err := strategicpatch.NewPatchMetaFromStruct(versioned)
	if err != nil {
		sio.Warnf("patch metadata from struct for %s: %v\n", gvk, err)
		return nil
	}
	return lookup
}

func decode(data []byte) (*unstructured.Unstructured, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "deserialize patched object")
	}
	return &unstructured.Unstructured{Object: m}, nil
}

func invalidPatch(gvk schema.GroupVersionKind, name string, err error) error {
	return apierrors.NewInvalid(gvk.GroupKind(), name, field.ErrorList{
		field.Invalid(field.NewPath("patch"), "", err.Error()),
	})
}

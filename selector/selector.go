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

// Package selector compiles label and field selector strings into predicates
// over unstructured objects. Label selectors support the full Kubernetes
// equality and set syntax. Field selectors support =, == and != against the
// paths registered as indexers for the type plus the implicit metadata.name
// and metadata.namespace.
package selector

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/splunk/kubesim/registry"
	"github.com/splunk/kubesim/store"
)

// Selection is a compiled pair of label and field selectors.
type Selection struct {
	labelSel  labels.Selector
	fieldReqs fields.Requirements
}

// Compile parses the supplied selector strings against the descriptor. Blank
// selectors match everything. A field selector referencing a path that is
// neither implicitly nor custom indexed fails.
func Compile(desc *registry.Descriptor, labelSel, fieldSel string) (*Selection, error) {
	ret := &Selection{}
	if labelSel != "" {
		sel, err := labels.Parse(labelSel)
		if err != nil {
			return nil, invalid(desc, field.Invalid(field.NewPath("labelSelector"), labelSel, err.Error()))
		}
		ret.labelSel = sel
	}
	if fieldSel != "" {
		sel, err := fields.ParseSelector(fieldSel)
		if err != nil {
			return nil, invalid(desc, field.Invalid(field.NewPath("fieldSelector"), fieldSel, err.Error()))
		}
		allowed := allowedPaths(desc)
		for _, req := range sel.Requirements() {
			if !allowed[req.Field] {
				supported := lo.Keys(allowed)
				sort.Strings(supported)
				return nil, invalid(desc, field.Invalid(field.NewPath("fieldSelector"), req.Field,
					"unsupported field selector path, supported paths: "+strings.Join(supported, ", ")))
			}
		}
		ret.fieldReqs = sel.Requirements()
	}
	return ret, nil
}

// Empty returns true when the selection matches every object.
func (s *Selection) Empty() bool {
	return (s.labelSel == nil || s.labelSel.Empty()) && len(s.fieldReqs) == 0
}

// Matches evaluates the selection against an object.
func (s *Selection) Matches(obj *unstructured.Unstructured) bool {
	if s.labelSel != nil && !s.labelSel.Matches(labels.Set(obj.GetLabels())) {
		return false
	}
	if len(s.fieldReqs) == 0 {
		return true
	}
	var doc []byte // lazily marshaled, shared across requirements
	for _, req := range s.fieldReqs {
		value, ok := fieldValue(obj, req.Field, &doc)
		switch req.Operator {
		case selection.Equals, selection.DoubleEquals:
			if !ok || value != req.Value {
				return false
			}
		case selection.NotEquals:
			if ok && value == req.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Hints returns the equality field clauses as store index hints.
func (s *Selection) Hints() []store.Hint {
	var ret []store.Hint
	for _, req := range s.fieldReqs {
		if req.Operator == selection.Equals || req.Operator == selection.DoubleEquals {
			ret = append(ret, store.Hint{Path: req.Field, Value: req.Value})
		}
	}
	return ret
}

func allowedPaths(desc *registry.Descriptor) map[string]bool {
	ret := map[string]bool{
		"metadata.name":      true,
		"metadata.namespace": true,
	}
	for _, p := range desc.IndexedPaths() {
		ret[p] = true
	}
	return ret
}

func fieldValue(obj *unstructured.Unstructured, path string, doc *[]byte) (string, bool) {
	switch path {
	case "metadata.name":
		return obj.GetName(), true
	case "metadata.namespace":
		return obj.GetNamespace(), true
	}
	if *doc == nil {
		b, err := obj.MarshalJSON()
		if err != nil {
			return "", false
		}
		*doc = b
	}
	res := gjson.GetBytes(*doc, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

func invalid(desc *registry.Descriptor, errs ...*field.Error) error {
	return apierrors.NewInvalid(desc.GVK.GroupKind(), "", field.ErrorList(errs))
}

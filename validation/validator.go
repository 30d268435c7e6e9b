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

// Package validation implements optional admission-style validation of
// inbound documents against a caller-supplied swagger 2.0 schema. A type
// with no definition in the document passes; validation only constrains
// what the document actually covers.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	oapierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/spec"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/splunk/kubesim/internal/sio"
)

const gvkExtension = "x-kubernetes-group-version-kind"

// Document is a parsed swagger 2.0 document with its definitions resolved
// by group version kind.
type Document struct {
	swagger *spec.Swagger
	byGVK   map[schema.GroupVersionKind]string

	mu     sync.Mutex
	misses map[schema.GroupVersionKind]bool
}

// Parse loads a swagger 2.0 document from its JSON serialization.
func Parse(data []byte) (*Document, error) {
	var sw spec.Swagger
	if err := json.Unmarshal(data, &sw); err != nil {
		return nil, errors.Wrap(err, "load swagger")
	}
	if sw.Definitions == nil {
		return nil, fmt.Errorf("unable to find definitions in swagger doc")
	}
	d := &Document{
		swagger: &sw,
		byGVK:   map[schema.GroupVersionKind]string{},
		misses:  map[schema.GroupVersionKind]bool{},
	}
	for name, def := range sw.Definitions {
		for _, gvk := range definitionGVKs(def) {
			d.byGVK[gvk] = name
		}
	}
	return d, nil
}

// definitionGVKs extracts the group version kinds a definition declares to
// serve via the x-kubernetes-group-version-kind extension.
func definitionGVKs(def spec.Schema) []schema.GroupVersionKind {
	raw, ok := def.Extensions[gvkExtension]
	if !ok {
		return nil
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var ret []schema.GroupVersionKind
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		gvk := schema.GroupVersionKind{}
		if g, ok := m["group"].(string); ok {
			gvk.Group = g
		}
		if v, ok := m["version"].(string); ok {
			gvk.Version = v
		}
		if k, ok := m["kind"].(string); ok {
			gvk.Kind = k
		}
		if gvk.Version != "" && gvk.Kind != "" {
			ret = append(ret, gvk)
		}
	}
	return ret
}

// Swagger returns the underlying document, needed by consumers that resolve
// references themselves.
func (d *Document) Swagger() *spec.Swagger {
	return d.swagger
}

// SchemaFor returns the schema definition serving the supplied group version
// kind, or false when the document does not cover it. Definitions that do not
// declare the group-version-kind extension are matched by the dotted
// "<version>.<Kind>" suffix convention.
func (d *Document) SchemaFor(gvk schema.GroupVersionKind) (*spec.Schema, bool) {
	if name, ok := d.byGVK[gvk]; ok {
		s := d.swagger.Definitions[name]
		return &s, true
	}
	suffix := "." + gvk.Version + "." + gvk.Kind
	names := make([]string, 0, len(d.swagger.Definitions))
	for name := range d.swagger.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.HasSuffix(name, suffix) {
			s := d.swagger.Definitions[name]
			return &s, true
		}
	}
	return nil, false
}

// Validate checks the supplied object against the definition for its group
// version kind. A type the document does not cover passes; failures surface
// as a single invalid-object error with path-qualified causes.
func (d *Document) Validate(gvk schema.GroupVersionKind, obj *unstructured.Unstructured) error {
	def, ok := d.SchemaFor(gvk)
	if !ok {
		d.mu.Lock()
		if !d.misses[gvk] {
			d.misses[gvk] = true
			sio.Debugf("no schema definition for %s, skipping validation\n", gvk)
		}
		d.mu.Unlock()
		return nil
	}
	v := validate.NewSchemaValidator(def, d.swagger, "", strfmt.Default)
	res := v.Validate(obj.UnstructuredContent())
	if res.IsValid() {
		return nil
	}
	var errs field.ErrorList
	for _, e := range res.Errors {
		errs = append(errs, toFieldError(e))
	}
	return apierrors.NewInvalid(gvk.GroupKind(), obj.GetName(), errs)
}

func toFieldError(err error) *field.Error {
	if ve, ok := err.(*oapierrors.Validation); ok {
		return &field.Error{
			Type:     field.ErrorTypeInvalid,
			Field:    ve.Name,
			BadValue: ve.Value,
			Detail:   ve.Error(),
		}
	}
	return &field.Error{
		Type:   field.ErrorTypeInvalid,
		Detail: err.Error(),
	}
}

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

package patch

import (
	"fmt"
	"strings"

	"github.com/go-openapi/spec"
	"k8s.io/apimachinery/pkg/util/strategicpatch"
)

// extensions the strategic merge metadata can come from, in order of
// precedence
const (
	extPatchStrategy = "x-kubernetes-patch-strategy"
	extPatchMergeKey = "x-kubernetes-patch-merge-key"
	extListType      = "x-kubernetes-list-type"
	extListMapKeys   = "x-kubernetes-list-map-keys"
)

const definitionsPrefix = "#/definitions/"

// openAPIMeta adapts a swagger 2.0 schema to the strategic merge patch
// metadata lookup. References are resolved against the root document's
// definitions.
type openAPIMeta struct {
	name   string
	schema *spec.Schema
	root   *spec.Swagger
}

var _ strategicpatch.LookupPatchMeta = &openAPIMeta{}

func (m *openAPIMeta) Name() string {
	return m.name
}

func (m *openAPIMeta) LookupPatchMetadataForStruct(key string) (strategicpatch.LookupPatchMeta, strategicpatch.PatchMeta, error) {
	prop := m.property(key)
	if prop == nil {
		return nil, strategicpatch.PatchMeta{}, fmt.Errorf("unable to find api field %q in %s", key, m.name)
	}
	child := m.resolve(prop)
	return &openAPIMeta{name: key, schema: child, root: m.root}, patchMetaFor(prop, child), nil
}

func (m *openAPIMeta) LookupPatchMetadataForSlice(key string) (strategicpatch.LookupPatchMeta, strategicpatch.PatchMeta, error) {
	prop := m.property(key)
	if prop == nil {
		return nil, strategicpatch.PatchMeta{}, fmt.Errorf("unable to find api field %q in %s", key, m.name)
	}
	resolved := m.resolve(prop)
	if resolved.Items == nil || resolved.Items.Schema == nil {
		return nil, strategicpatch.PatchMeta{}, fmt.Errorf("api field %q in %s is not a list", key, m.name)
	}
	item := m.resolve(resolved.Items.Schema)
	return &openAPIMeta{name: key, schema: item, root: m.root}, patchMetaFor(prop, resolved), nil
}

// property returns the raw property schema for key, without resolving it,
// so that extensions declared on the property itself stay visible.
func (m *openAPIMeta) property(key string) *spec.Schema {
	s := m.resolve(m.schema)
	if s == nil {
		return nil
	}
	if prop, ok := s.Properties[key]; ok {
		return &prop
	}
	return nil
}

// resolve chases $ref pointers through the root document's definitions.
func (m *openAPIMeta) resolve(s *spec.Schema) *spec.Schema {
	for i := 0; s != nil && i < 10; i++ {
		ref := s.Ref.String()
		if ref == "" || !strings.HasPrefix(ref, definitionsPrefix) {
			return s
		}
		def, ok := m.root.Definitions[strings.TrimPrefix(ref, definitionsPrefix)]
		if !ok {
			return s
		}
		s = &def
	}
	return s
}

// patchMetaFor derives patch strategies and the merge key from the
// extensions present on the property or its resolved form. The dedicated
// patch extensions win; list-type metadata translates into the equivalent
// strategies; absence of both means atomic replacement.
func patchMetaFor(schemas ...*spec.Schema) strategicpatch.PatchMeta {
	var pm strategicpatch.PatchMeta
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if strategy, ok := s.Extensions.GetString(extPatchStrategy); ok && strategy != "" {
			pm.SetPatchStrategies(strings.Split(strategy, ","))
			if key, ok := s.Extensions.GetString(extPatchMergeKey); ok && key != "" {
				pm.SetPatchMergeKey(key)
			}
			return pm
		}
		listType, ok := s.Extensions.GetString(extListType)
		if !ok {
			continue
		}
		switch listType {
		case "map":
			if keys, ok := listMapKeys(s.Extensions); ok && len(keys) > 0 {
				pm.SetPatchStrategies([]string{"merge"})
				pm.SetPatchMergeKey(keys[0])
				return pm
			}
		case "set":
			pm.SetPatchStrategies([]string{"merge"})
			return pm
		case "atomic":
			return pm
		}
	}
	return pm
}

func listMapKeys(ext spec.Extensions) ([]string, bool) {
	raw, ok := ext[extListMapKeys]
	if !ok {
		return nil, false
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}
	var ret []string
	for _, e := range entries {
		if s, ok := e.(string); ok {
			ret = append(ret, s)
		}
	}
	return ret, true
}

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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var widgetGVK = schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Widget"}

func TestWellKnownTypes(t *testing.T) {
	a := assert.New(t)
	r := New()

	tests := []struct {
		gvk        schema.GroupVersionKind
		resource   string
		namespaced bool
	}{
		{schema.GroupVersionKind{Version: "v1", Kind: "Pod"}, "pods", true},
		{schema.GroupVersionKind{Version: "v1", Kind: "Namespace"}, "namespaces", false},
		{schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, "deployments", true},
		{schema.GroupVersionKind{Group: "networking.k8s.io", Version: "v1", Kind: "NetworkPolicy"}, "networkpolicies", true},
		{schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "ClusterRole"}, "clusterroles", false},
	}
	for _, test := range tests {
		d, ok := r.Lookup(test.gvk)
		require.True(t, ok, "lookup %s", test.gvk)
		a.Equal(test.resource, d.Resource)
		a.Equal(test.namespaced, d.Namespaced())
		a.Equal(test.gvk.Kind+"List", d.ListKind)
		a.False(d.HasStatus())
	}
}

func TestRegisterDefaults(t *testing.T) {
	a := assert.New(t)
	r := New()
	err := r.Register(Registration{GVK: widgetGVK, Scope: NamespaceScoped})
	require.NoError(t, err)

	d, ok := r.Lookup(widgetGVK)
	require.True(t, ok)
	a.Equal("widgets", d.Resource)
	a.Equal("WidgetList", d.ListKind)
	a.True(d.Namespaced())

	byRes, ok := r.LookupResource(schema.GroupVersionResource{Group: "example.com", Version: "v1", Resource: "widgets"})
	require.True(t, ok)
	a.Equal(d, byRes)
}

func TestRegisterRepeat(t *testing.T) {
	a := assert.New(t)
	r := New()
	reg := Registration{GVK: widgetGVK, Scope: NamespaceScoped, Subresources: []string{"status"}}
	require.NoError(t, r.Register(reg))
	require.NoError(t, r.Register(reg)) // identical repeat is fine

	err := r.Register(Registration{GVK: widgetGVK, Scope: ClusterScoped})
	require.Error(t, err)
	a.Contains(err.Error(), "conflicting registration")
}

func TestRegisterInvalid(t *testing.T) {
	a := assert.New(t)
	r := New()

	err := r.Register(Registration{GVK: schema.GroupVersionKind{Group: "example.com", Version: "v1"}})
	require.Error(t, err)
	a.Contains(err.Error(), "needs at least a version and kind")

	err = r.Register(Registration{GVK: widgetGVK, Scope: Scope("Regional")})
	require.Error(t, err)
	a.Contains(err.Error(), "unknown scope")

	err = r.Register(Registration{GVK: widgetGVK, Subresources: []string{"scale"}})
	require.Error(t, err)
	a.Contains(err.Error(), "unsupported subresource")

	err = r.Register(Registration{GVK: widgetGVK, Indexers: map[string]Indexer{"spec.color": nil}})
	require.Error(t, err)
	a.Contains(err.Error(), "nil indexer")
}

func TestEnableStatus(t *testing.T) {
	a := assert.New(t)
	r := New()
	require.NoError(t, r.Register(Registration{GVK: widgetGVK}))
	require.NoError(t, r.EnableStatus(widgetGVK))

	d, _ := r.Lookup(widgetGVK)
	a.True(d.HasStatus())
	a.Equal([]string{"status"}, d.Subresources())

	err := r.EnableStatus(schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Gadget"})
	require.Error(t, err)
	a.Contains(err.Error(), "unregistered type")
}

func TestIndexers(t *testing.T) {
	a := assert.New(t)
	r := New()
	fn := func(obj *unstructured.Unstructured) []string { return []string{obj.GetName()} }
	require.NoError(t, r.Register(Registration{
		GVK:      widgetGVK,
		Indexers: map[string]Indexer{"spec.color": fn, "spec.size": fn},
	}))
	d, _ := r.Lookup(widgetGVK)
	a.Equal([]string{"spec.color", "spec.size"}, d.IndexedPaths())
	_, ok := d.Indexer("spec.color")
	a.True(ok)
	_, ok = d.Indexer("spec.weight")
	a.False(ok)
}

func TestDescriptorsSorted(t *testing.T) {
	a := assert.New(t)
	r := New()
	ds := r.Descriptors()
	require.NotEmpty(t, ds)
	for i := 1; i < len(ds); i++ {
		prev, cur := ds[i-1].GVK, ds[i].GVK
		less := prev.Group < cur.Group ||
			(prev.Group == cur.Group && prev.Version < cur.Version) ||
			(prev.Group == cur.Group && prev.Version == cur.Version && prev.Kind < cur.Kind)
		a.True(less, "%s before %s", prev, cur)
	}
}

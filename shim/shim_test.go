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

package shim

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/splunk/kubesim/engine"
	"github.com/splunk/kubesim/patch"
	"github.com/splunk/kubesim/registry"
	"github.com/splunk/kubesim/store"
)

var podGVK = schema.GroupVersionKind{Version: "v1", Kind: "Pod"}

func testShim(t *testing.T, seeds ...*unstructured.Unstructured) *Shim {
	r := registry.New()
	st := store.New(clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), time.Second)
	for _, d := range r.Descriptors() {
		st.Track(d.GVK, d.GroupResource(), d.Indexers())
	}
	eng := engine.New(r, st, patch.New(nil), nil, nil)
	for _, s := range seeds {
		require.NoError(t, eng.Seed(s))
	}
	return New(r, eng)
}

func pod(ns, name string, labels map[string]interface{}) *unstructured.Unstructured {
	meta := map[string]interface{}{"namespace": ns, "name": name}
	if labels != nil {
		meta["labels"] = labels
	}
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata":   meta,
		"spec":       map[string]interface{}{"nodeName": "node-1"},
	}}
}

func body(t *testing.T, obj *unstructured.Unstructured) []byte {
	b, err := json.Marshal(obj.Object)
	require.NoError(t, err)
	return b
}

func TestGetByPath(t *testing.T) {
	a := assert.New(t)
	s := testShim(t, pod("default", "p1", nil))

	resp := s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/namespaces/default/pods/p1"})
	require.Equal(t, http.StatusOK, resp.Code)
	a.Equal("p1", resp.Body["metadata"].(map[string]interface{})["name"])

	resp = s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/namespaces/default/pods/missing"})
	a.Equal(http.StatusNotFound, resp.Code)
	a.Equal("Status", resp.Body["kind"])
	a.Equal("NotFound", resp.Body["reason"])
}

func TestGetNamespaceObject(t *testing.T) {
	a := assert.New(t)
	ns := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Namespace",
		"metadata":   map[string]interface{}{"name": "default"},
	}}
	s := testShim(t, ns)
	resp := s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/namespaces/default"})
	require.Equal(t, http.StatusOK, resp.Code)
	a.Equal("Namespace", resp.Body["kind"])
}

func TestListWithSelectors(t *testing.T) {
	a := assert.New(t)
	s := testShim(t,
		pod("default", "p1", map[string]interface{}{"app": "web"}),
		pod("default", "p2", map[string]interface{}{"app": "db"}),
	)

	q := url.Values{}
	q.Set("labelSelector", "app=web")
	resp := s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/namespaces/default/pods", Query: q})
	require.Equal(t, http.StatusOK, resp.Code)
	a.Equal("PodList", resp.Body["kind"])
	a.Equal("v1", resp.Body["apiVersion"])
	items := resp.Body["items"].([]interface{})
	require.Len(t, items, 1)
	meta := resp.Body["metadata"].(map[string]interface{})
	a.NotEmpty(meta["resourceVersion"])
}

func TestCreateUpdateDeleteRoundTrip(t *testing.T) {
	a := assert.New(t)
	s := testShim(t)

	resp := s.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/v1/namespaces/default/pods",
		Body:   body(t, pod("default", "p1", nil)),
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	created := &unstructured.Unstructured{Object: resp.Body}
	a.Equal("1", created.GetResourceVersion())

	update := created.DeepCopy()
	update.SetLabels(map[string]string{"app": "web"})
	resp = s.Do(context.Background(), Request{
		Method: http.MethodPut,
		Path:   "/api/v1/namespaces/default/pods/p1",
		Body:   body(t, update),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	// stale update conflicts
	resp = s.Do(context.Background(), Request{
		Method: http.MethodPut,
		Path:   "/api/v1/namespaces/default/pods/p1",
		Body:   body(t, update),
	})
	a.Equal(http.StatusConflict, resp.Code)
	a.Equal("Conflict", resp.Body["reason"])

	resp = s.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/api/v1/namespaces/default/pods/p1"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/namespaces/default/pods/p1"})
	a.Equal(http.StatusNotFound, resp.Code)
}

func TestPatchDialects(t *testing.T) {
	a := assert.New(t)
	s := testShim(t, pod("default", "p1", map[string]interface{}{"app": "web"}))

	resp := s.Do(context.Background(), Request{
		Method:      http.MethodPatch,
		Path:        "/api/v1/namespaces/default/pods/p1",
		ContentType: "application/merge-patch+json",
		Body:        []byte(`{"metadata":{"labels":{"tier":"frontend"}}}`),
	})
	require.Equal(t, http.StatusOK, resp.Code)
	patched := &unstructured.Unstructured{Object: resp.Body}
	a.Equal("frontend", patched.GetLabels()["tier"])

	resp = s.Do(context.Background(), Request{
		Method:      http.MethodPatch,
		Path:        "/api/v1/namespaces/default/pods/p1",
		ContentType: "application/json-patch+json",
		Body:        []byte(`[{"op":"remove","path":"/metadata/labels/tier"}]`),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = s.Do(context.Background(), Request{
		Method:      http.MethodPatch,
		Path:        "/api/v1/namespaces/default/pods/p1",
		ContentType: "text/plain",
		Body:        []byte(`hello`),
	})
	a.Equal(http.StatusUnsupportedMediaType, resp.Code)
}

func TestMethodVerbMismatches(t *testing.T) {
	a := assert.New(t)
	s := testShim(t, pod("default", "p1", nil))

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"post-to-name", http.MethodPost, "/api/v1/namespaces/default/pods/p1"},
		{"put-to-collection", http.MethodPut, "/api/v1/namespaces/default/pods"},
		{"patch-to-collection", http.MethodPatch, "/api/v1/namespaces/default/pods"},
		{"delete-collection", http.MethodDelete, "/api/v1/namespaces/default/pods"},
		{"head", http.MethodHead, "/api/v1/namespaces/default/pods"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp := s.Do(context.Background(), Request{Method: test.method, Path: test.path, Body: []byte(`{}`)})
			a.Equal(http.StatusMethodNotAllowed, resp.Code)
		})
	}
}

func TestUnknownPaths(t *testing.T) {
	a := assert.New(t)
	s := testShim(t)
	for _, path := range []string{
		"/",
		"/api",
		"/api/v1",
		"/healthz",
		"/api/v1/frobnicators",
		"/apis/example.com/v1/widgets",
		"/api/v1/namespaces/default/pods/p1/status/extra",
	} {
		resp := s.Do(context.Background(), Request{Method: http.MethodGet, Path: path})
		a.Equal(http.StatusNotFound, resp.Code, "path %s", path)
	}
}

func TestGroupPaths(t *testing.T) {
	a := assert.New(t)
	dep := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata":   map[string]interface{}{"namespace": "default", "name": "d1"},
		"spec":       map[string]interface{}{"replicas": int64(1)},
	}}
	s := testShim(t, dep)
	resp := s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/apis/apps/v1/namespaces/default/deployments/d1"})
	require.Equal(t, http.StatusOK, resp.Code)
	a.Equal("Deployment", resp.Body["kind"])

	resp = s.Do(context.Background(), Request{Method: http.MethodGet, Path: "/apis/apps/v1/deployments"})
	require.Equal(t, http.StatusOK, resp.Code)
	a.Len(resp.Body["items"].([]interface{}), 1)
}

func TestDeleteWithOptionsBody(t *testing.T) {
	a := assert.New(t)
	s := testShim(t, pod("default", "p1", nil))
	resp := s.Do(context.Background(), Request{
		Method: http.MethodDelete,
		Path:   "/api/v1/namespaces/default/pods/p1",
		Body:   []byte(`{"preconditions":{"resourceVersion":"42"},"propagationPolicy":"Background"}`),
	})
	a.Equal(http.StatusConflict, resp.Code)

	resp = s.Do(context.Background(), Request{
		Method: http.MethodDelete,
		Path:   "/api/v1/namespaces/default/pods/p1",
		Body:   []byte(`{"preconditions":{"resourceVersion":"1"}}`),
	})
	a.Equal(http.StatusOK, resp.Code)
}

func TestStatusSubresourcePath(t *testing.T) {
	a := assert.New(t)
	dep := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata":   map[string]interface{}{"namespace": "default", "name": "d1"},
		"spec":       map[string]interface{}{"replicas": int64(5)},
		"status":     map[string]interface{}{"availableReplicas": int64(0)},
	}}

	r := registry.New()
	require.NoError(t, r.EnableStatus(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}))
	st := store.New(clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), time.Second)
	for _, d := range r.Descriptors() {
		st.Track(d.GVK, d.GroupResource(), d.Indexers())
	}
	eng := engine.New(r, st, patch.New(nil), nil, nil)
	require.NoError(t, eng.Seed(dep))
	s := New(r, eng)

	update := dep.DeepCopy()
	require.NoError(t, unstructured.SetNestedField(update.Object, int64(3), "status", "availableReplicas"))
	require.NoError(t, unstructured.SetNestedField(update.Object, int64(1), "spec", "replicas"))
	resp := s.Do(context.Background(), Request{
		Method: http.MethodPut,
		Path:   "/apis/apps/v1/namespaces/default/deployments/d1/status",
		Body:   body(t, update),
	})
	require.Equal(t, http.StatusOK, resp.Code)
	result := &unstructured.Unstructured{Object: resp.Body}
	avail, _, _ := unstructured.NestedFieldNoCopy(result.Object, "status", "availableReplicas")
	a.EqualValues(3, avail)
	replicas, _, _ := unstructured.NestedFieldNoCopy(result.Object, "spec", "replicas")
	a.EqualValues(5, replicas, "a status write leaves spec untouched")
}

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

package store

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Key identifies at most one object in the store. Cluster-scoped keys are a
// distinct variant rather than namespaced keys with a blank namespace, so the
// two can never collide.
type Key struct {
	GVK       schema.GroupVersionKind
	Namespace string
	Name      string
	cluster   bool
}

// NamespacedKey returns a key for an object that lives inside a namespace.
func NamespacedKey(gvk schema.GroupVersionKind, namespace, name string) Key {
	return Key{GVK: gvk, Namespace: namespace, Name: name}
}

// ClusterKey returns a key for a cluster-scoped object.
func ClusterKey(gvk schema.GroupVersionKind, name string) Key {
	return Key{GVK: gvk, Name: name, cluster: true}
}

// ClusterScoped returns true for keys of cluster-scoped objects.
func (k Key) ClusterScoped() bool {
	return k.cluster
}

func (k Key) String() string {
	gv := k.GVK.GroupVersion().String()
	if k.cluster {
		return fmt.Sprintf("%s/%s %s", gv, k.GVK.Kind, k.Name)
	}
	return fmt.Sprintf("%s/%s %s/%s", gv, k.GVK.Kind, k.Namespace, k.Name)
}

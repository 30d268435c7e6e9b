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
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func namespaced(group, version, kind string) Registration {
	return Registration{
		GVK:   schema.GroupVersionKind{Group: group, Version: version, Kind: kind},
		Scope: NamespaceScoped,
	}
}

func clusterScoped(group, version, kind string) Registration {
	return Registration{
		GVK:   schema.GroupVersionKind{Group: group, Version: version, Kind: kind},
		Scope: ClusterScoped,
	}
}

// wellKnown is the set of types every simulator instance serves without
// explicit registration. Custom resources and anything not listed here are
// declared through the builder.
var wellKnown = []Registration{
	namespaced("", "v1", "Pod"),
	namespaced("", "v1", "ConfigMap"),
	namespaced("", "v1", "Secret"),
	namespaced("", "v1", "Service"),
	namespaced("", "v1", "ServiceAccount"),
	namespaced("", "v1", "PersistentVolumeClaim"),
	namespaced("", "v1", "Endpoints"),
	namespaced("", "v1", "Event"),
	namespaced("", "v1", "LimitRange"),
	namespaced("", "v1", "ResourceQuota"),
	namespaced("", "v1", "ReplicationController"),
	clusterScoped("", "v1", "Namespace"),
	clusterScoped("", "v1", "Node"),
	clusterScoped("", "v1", "PersistentVolume"),
	namespaced("apps", "v1", "Deployment"),
	namespaced("apps", "v1", "ReplicaSet"),
	namespaced("apps", "v1", "StatefulSet"),
	namespaced("apps", "v1", "DaemonSet"),
	namespaced("batch", "v1", "Job"),
	namespaced("batch", "v1", "CronJob"),
	namespaced("networking.k8s.io", "v1", "Ingress"),
	namespaced("networking.k8s.io", "v1", "NetworkPolicy"),
	namespaced("policy", "v1", "PodDisruptionBudget"),
	namespaced("rbac.authorization.k8s.io", "v1", "Role"),
	namespaced("rbac.authorization.k8s.io", "v1", "RoleBinding"),
	clusterScoped("rbac.authorization.k8s.io", "v1", "ClusterRole"),
	clusterScoped("rbac.authorization.k8s.io", "v1", "ClusterRoleBinding"),
	clusterScoped("apiextensions.k8s.io", "v1", "CustomResourceDefinition"),
	clusterScoped("storage.k8s.io", "v1", "StorageClass"),
	namespaced("autoscaling", "v2", "HorizontalPodAutoscaler"),
	namespaced("coordination.k8s.io", "v1", "Lease"),
}

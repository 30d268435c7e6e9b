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
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/splunk/kubesim/registry"
)

// target is a parsed request path.
type target struct {
	desc        *registry.Descriptor
	namespace   string
	name        string
	subresource string
}

// parsePath resolves a path of the form
//
//	/api/v1[/namespaces/{ns}]/{resource}[/{name}[/status]]
//	/apis/{group}/{version}[/namespaces/{ns}]/{resource}[/{name}[/status]]
//
// against the registry. The one ambiguity in the grammar is the namespaces
// resource itself: /api/v1/namespaces/{name} addresses a Namespace object,
// a longer path addresses a resource inside that namespace.
func (s *Shim) parsePath(path string) (*target, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var group, version string
	switch {
	case len(segments) >= 2 && segments[0] == "api":
		group, version = "", segments[1]
		segments = segments[2:]
	case len(segments) >= 3 && segments[0] == "apis":
		group, version = segments[1], segments[2]
		segments = segments[3:]
	default:
		return nil, pathNotFound(path)
	}

	ret := &target{}
	if len(segments) >= 3 && segments[0] == "namespaces" {
		ret.namespace = segments[1]
		segments = segments[2:]
	}
	if len(segments) == 0 {
		return nil, pathNotFound(path)
	}
	resource := segments[0]
	segments = segments[1:]
	if len(segments) > 0 {
		ret.name = segments[0]
		segments = segments[1:]
	}
	if len(segments) > 0 {
		ret.subresource = segments[0]
		segments = segments[1:]
	}
	if len(segments) > 0 {
		return nil, pathNotFound(path)
	}

	gvr := schema.GroupVersionResource{Group: group, Version: version, Resource: resource}
	desc, ok := s.reg.LookupResource(gvr)
	if !ok {
		return nil, apierrors.NewNotFound(gvr.GroupResource(), ret.name)
	}
	ret.desc = desc
	return ret, nil
}

func pathNotFound(path string) error {
	return apierrors.NewNotFound(schema.GroupResource{}, path)
}

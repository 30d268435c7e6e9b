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

// Package shim converts REST-shaped requests following the Kubernetes path
// conventions into verb calls and serializes results the way an API server
// would, including Status documents for errors. It is the seam a typed
// client adapter plugs into.
package shim

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"

	"github.com/splunk/kubesim/engine"
	"github.com/splunk/kubesim/registry"
)

// Request is an inbound REST-shaped request.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Response is the serialized result: an HTTP status code and an object tree
// the client deserializes into its typed form.
type Response struct {
	Code int
	Body map[string]interface{}
}

// Shim translates requests into engine calls.
type Shim struct {
	reg *registry.Registry
	eng *engine.Engine
}

// New returns a shim over the supplied registry and engine.
func New(reg *registry.Registry, eng *engine.Engine) *Shim {
	return &Shim{reg: reg, eng: eng}
}

var patchTypes = map[string]types.PatchType{
	"application/json-patch+json":            types.JSONPatchType,
	"application/merge-patch+json":           types.MergePatchType,
	"application/strategic-merge-patch+json": types.StrategicMergePatchType,
	"application/apply-patch+yaml":           types.ApplyPatchType,
}

// Do executes the request. Errors never escape as Go errors; they are
// serialized into Status documents with the matching HTTP code.
func (s *Shim) Do(ctx context.Context, req Request) Response {
	target, err := s.parsePath(req.Path)
	if err != nil {
		return errorResponse(err)
	}
	verbReq, err := s.buildRequest(target, req)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := s.eng.Do(ctx, verbReq)
	if err != nil {
		return errorResponse(err)
	}
	return s.successResponse(target, verbReq, resp)
}

func (s *Shim) buildRequest(target *target, req Request) (*engine.Request, error) {
	desc := target.desc
	ret := &engine.Request{
		GVK:         desc.GVK,
		Namespace:   target.namespace,
		Name:        target.name,
		Subresource: target.subresource,
	}
	if dr := req.Query.Get("dryRun"); dr != "" {
		ret.DryRun = true
	}
	switch req.Method {
	case http.MethodGet:
		if target.name == "" {
			ret.Verb = engine.VerbList
			ret.LabelSelector = req.Query.Get("labelSelector")
			ret.FieldSelector = req.Query.Get("fieldSelector")
		} else {
			ret.Verb = engine.VerbGet
		}
	case http.MethodPost:
		if target.name != "" {
			return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), "post")
		}
		ret.Verb = engine.VerbCreate
		obj, err := decodeObject(req.Body)
		if err != nil {
			return nil, err
		}
		ret.Object = obj
	case http.MethodPut:
		if target.name == "" {
			return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), "put")
		}
		ret.Verb = engine.VerbUpdate
		obj, err := decodeObject(req.Body)
		if err != nil {
			return nil, err
		}
		ret.Object = obj
	case http.MethodPatch:
		if target.name == "" {
			return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), "patch")
		}
		pt, ok := patchTypes[req.ContentType]
		if !ok {
			return nil, unsupportedMediaType(req.ContentType)
		}
		ret.Verb = engine.VerbPatch
		ret.PatchType = pt
		ret.Patch = req.Body
	case http.MethodDelete:
		if target.name == "" {
			return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), "deletecollection")
		}
		ret.Verb = engine.VerbDelete
		if len(req.Body) > 0 {
			var opts metav1.DeleteOptions
			if err := json.Unmarshal(req.Body, &opts); err != nil {
				return nil, apierrors.NewBadRequest("unable to parse delete options: " + err.Error())
			}
			ret.Preconditions = opts.Preconditions
			ret.PropagationPolicy = opts.PropagationPolicy
		}
		if pp := req.Query.Get("propagationPolicy"); pp != "" && ret.PropagationPolicy == nil {
			policy := metav1.DeletionPropagation(pp)
			ret.PropagationPolicy = &policy
		}
	default:
		return nil, apierrors.NewMethodNotSupported(desc.GroupResource(), req.Method)
	}
	return ret, nil
}

func (s *Shim) successResponse(target *target, verbReq *engine.Request, resp *engine.Response) Response {
	if verbReq.Verb == engine.VerbList {
		items := make([]interface{}, 0, len(resp.Items))
		for _, o := range resp.Items {
			items = append(items, o.Object)
		}
		return Response{
			Code: http.StatusOK,
			Body: map[string]interface{}{
				"apiVersion": target.desc.GVK.GroupVersion().String(),
				"kind":       target.desc.ListKind,
				"metadata":   map[string]interface{}{"resourceVersion": resp.ResourceVersion},
				"items":      items,
			},
		}
	}
	code := http.StatusOK
	if verbReq.Verb == engine.VerbCreate {
		code = http.StatusCreated
	}
	var body map[string]interface{}
	if resp.Object != nil {
		body = resp.Object.Object
	}
	return Response{Code: code, Body: body}
}

func decodeObject(body []byte) (*unstructured.Unstructured, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, apierrors.NewBadRequest("unable to parse request body: " + err.Error())
	}
	return &unstructured.Unstructured{Object: m}, nil
}

func unsupportedMediaType(contentType string) error {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusUnsupportedMediaType,
		Reason:  metav1.StatusReasonUnsupportedMediaType,
		Message: "unsupported patch content type " + contentType,
	}}
}

func errorResponse(err error) Response {
	var status metav1.Status
	if se, ok := err.(apierrors.APIStatus); ok {
		status = se.Status()
	} else {
		status = apierrors.NewInternalError(err).Status()
	}
	if status.Code == 0 {
		status.Code = http.StatusInternalServerError
	}
	status.Kind = "Status"
	status.APIVersion = "v1"
	return Response{Code: int(status.Code), Body: statusBody(status)}
}

func statusBody(status metav1.Status) map[string]interface{} {
	b, err := json.Marshal(status)
	if err != nil {
		return map[string]interface{}{"kind": "Status", "message": status.Message}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]interface{}{"kind": "Status", "message": status.Message}
	}
	return m
}

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

package engine

import (
	"context"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/splunk/kubesim/internal/sio"
)

// Handler is a per-verb interceptor callback. Returning a nil response and a
// nil error passes the request through; a non-nil response short-circuits
// the remaining chain and the store; an error aborts the call.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Interceptor is a set of optional per-verb callbacks. Interceptors are
// non-reentrant by default: overlapping invocations of the same interceptor
// serialize. Set Reentrant when the callbacks manage their own state.
type Interceptor struct {
	Name      string
	Reentrant bool
	OnGet     Handler
	OnList    Handler
	OnCreate  Handler
	OnUpdate  Handler
	OnPatch   Handler
	OnDelete  Handler

	mu sync.Mutex
}

func (i *Interceptor) handler(v Verb) Handler {
	switch v {
	case VerbGet:
		return i.OnGet
	case VerbList:
		return i.OnList
	case VerbCreate:
		return i.OnCreate
	case VerbUpdate:
		return i.OnUpdate
	case VerbPatch:
		return i.OnPatch
	case VerbDelete:
		return i.OnDelete
	default:
		return nil
	}
}

func (i *Interceptor) invoke(ctx context.Context, h Handler, req *Request) (*Response, error) {
	if !i.Reentrant {
		i.mu.Lock()
		defer i.mu.Unlock()
	}
	return h(ctx, req)
}

// runChain dispatches the request through the interceptors in registration
// order. The boolean return is true when an interceptor produced a response
// or an error and the store must not run.
func (e *Engine) runChain(ctx context.Context, req *Request) (*Response, bool, error) {
	for _, i := range e.chain {
		h := i.handler(req.Verb)
		if h == nil {
			continue
		}
		resp, err := i.invoke(ctx, h, req)
		if err != nil {
			if _, ok := err.(apierrors.APIStatus); !ok {
				err = apierrors.NewInternalError(err)
			}
			return nil, true, err
		}
		if resp != nil {
			if i.Name != "" {
				sio.Debugf("interceptor %s short-circuited %s %s\n", i.Name, req.Verb, req.GVK)
			}
			return resp, true, nil
		}
	}
	return nil, false, nil
}

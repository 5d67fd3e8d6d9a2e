/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package swift

import (
	"context"
	"errors"
	"net/http"

	"github.com/majewsky/schwift"
)

// ErrNotConnected is returned by every operation that needs to talk to Swift
// when the Session is not connected. It is returned before any request is
// attempted.
var ErrNotConnected = errors.New("swift session is not connected")

// Do sends the given request through the Schwift backend of the given
// Session, bound to ctx. Any Context in r.Options is replaced.
//
// If the Session is not connected, ErrNotConnected is returned and nothing is
// sent. A response with a status code outside r.ExpectStatusCodes yields a
// schwift.UnexpectedStatusCodeError, which can be checked with schwift.Is().
// Errors are returned unwrapped.
func Do(ctx context.Context, s Session, r schwift.Request) (*http.Response, error) {
	backend := s.Backend()
	if backend == nil {
		return nil, ErrNotConnected
	}
	opts := schwift.RequestOptions{Context: ctx}
	if r.Options != nil {
		opts.Headers = r.Options.Headers
		opts.Values = r.Options.Values
	}
	r.Options = &opts
	return r.Do(backend)
}

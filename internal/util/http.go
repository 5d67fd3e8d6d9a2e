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

package util

import (
	"net/http"
	"time"

	"github.com/sapcc/go-bits/logg"
)

// SlowRequestThreshold is the duration above which a single request is
// reported by the logging round tripper. Segment uploads of several GiB can
// legitimately take this long, so it is only logged on info level.
var SlowRequestThreshold = 1 * time.Minute

// AddLoggingRoundTripper adds logging to http.RoundTripper. Every request is
// logged on debug level, and requests that take longer than
// SlowRequestThreshold are logged on info level.
func AddLoggingRoundTripper(inner http.RoundTripper) http.RoundTripper {
	return loggingRoundTripper{inner}
}

type loggingRoundTripper struct {
	Inner http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface.
func (rt loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.Inner.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		logg.Debug("%s %s failed after %s: %s", req.Method, redactedURL(req), duration.String(), err.Error())
		return resp, err
	}
	logg.Debug("%s %s returned %d after %s", req.Method, redactedURL(req), resp.StatusCode, duration.String())
	if duration > SlowRequestThreshold {
		logg.Info("Swift request has taken excessively long (%s): %s %s", duration.String(), req.Method, redactedURL(req))
	}

	return resp, err
}

// Temporary URL signatures must not end up in logs.
func redactedURL(req *http.Request) string {
	u := *req.URL
	q := u.Query()
	if q.Has("temp_url_sig") {
		q.Set("temp_url_sig", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

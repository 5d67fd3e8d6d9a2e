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

package largeobject

import (
	"github.com/prometheus/client_golang/prometheus"
)

var segmentUploadsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "swiftlo_segment_uploads_total",
		Help: "Counter for segment uploads performed while building large objects.",
	},
	[]string{"strategy", "result"},
)

var segmentUploadBytesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "swiftlo_segment_upload_bytes_total",
		Help: "Counter for bytes uploaded into segments of large objects.",
	},
	[]string{"strategy"},
)

var manifestWritesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "swiftlo_manifest_writes_total",
		Help: "Counter for attempts to publish a large object manifest.",
	},
	[]string{"strategy", "result"},
)

// RegisterMetrics registers the metrics of this package with the given
// registerer. This must be called at most once per registerer.
func RegisterMetrics(r prometheus.Registerer) {
	r.MustRegister(segmentUploadsCounter)
	r.MustRegister(segmentUploadBytesCounter)
	r.MustRegister(manifestWritesCounter)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}

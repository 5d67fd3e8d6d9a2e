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
	"net/http"
	"strings"

	"github.com/majewsky/schwift"
)

// Header prefixes for user metadata.
const (
	ContainerMetadataPrefix = "X-Container-Meta-"
	ObjectMetadataPrefix    = "X-Object-Meta-"
)

// Metadata keys are case-insensitive in Swift, so they are reported in lower
// case.
func metadataFromHeaders(hdr http.Header, prefix string) map[string]string {
	result := make(map[string]string)
	lowerPrefix := strings.ToLower(prefix)
	for key, values := range hdr {
		lowerKey := strings.ToLower(key)
		if !strings.HasPrefix(lowerKey, lowerPrefix) || len(values) == 0 {
			continue
		}
		name := strings.TrimPrefix(lowerKey, lowerPrefix)
		if name != "" {
			result[name] = values[0]
		}
	}
	return result
}

// An empty value is sent as-is: Swift interprets it as removal of that key.
func objectMetadataHeaders(metadata map[string]string) schwift.Headers {
	hdr := schwift.NewObjectHeaders()
	for key, value := range metadata {
		hdr.Metadata().Set(key, value)
	}
	return hdr.Headers
}

func containerMetadataHeaders(metadata map[string]string) schwift.Headers {
	hdr := schwift.NewContainerHeaders()
	for key, value := range metadata {
		hdr.Metadata().Set(key, value)
	}
	return hdr.Headers
}

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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/majewsky/schwift"
)

// Container is a handle for a Swift container. Creating a handle does not
// send any requests.
type Container struct {
	s    Session
	name string
}

// ObjectInfo is an entry in the result of Container.ListObjects.
type ObjectInfo struct {
	Name         string `json:"name"`
	SizeBytes    uint64 `json:"bytes"`
	Etag         string `json:"hash"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
}

// NewContainer returns a handle for the container with the given name.
func NewContainer(s Session, name string) *Container {
	return &Container{s: s, name: name}
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.name
}

// Session returns the Session that this container is accessed through.
func (c *Container) Session() Session {
	return c.s
}

// Object returns a handle for the object with the given name in this
// container.
func (c *Container) Object(name string) *Segment {
	return NewSegment(c, name)
}

// Create creates the container, or does nothing if it exists already.
func (c *Container) Create(ctx context.Context) error {
	_, err := Do(ctx, c.s, schwift.Request{
		Method:            http.MethodPut,
		ContainerName:     c.name,
		ExpectStatusCodes: []int{http.StatusCreated, http.StatusAccepted},
		DrainResponseBody: true,
	})
	return err
}

// Delete deletes the container. Swift refuses this with 409 Conflict if the
// container is not empty; that and 404 Not Found are reported as errors.
func (c *Container) Delete(ctx context.Context) error {
	_, err := Do(ctx, c.s, schwift.Request{
		Method:            http.MethodDelete,
		ContainerName:     c.name,
		ExpectStatusCodes: []int{http.StatusNoContent},
		DrainResponseBody: true,
	})
	return err
}

// Metadata returns the container's user metadata, with the
// "X-Container-Meta-" prefix removed from the keys.
func (c *Container) Metadata(ctx context.Context) (map[string]string, error) {
	resp, err := Do(ctx, c.s, schwift.Request{
		Method:            http.MethodHead,
		ContainerName:     c.name,
		ExpectStatusCodes: []int{http.StatusOK, http.StatusNoContent},
		DrainResponseBody: true,
	})
	if err != nil {
		return nil, err
	}
	return metadataFromHeaders(resp.Header, ContainerMetadataPrefix), nil
}

// SetMetadata sets the given user metadata on the container. Keys with empty
// values are removed. The result contains the headers that were sent, not
// the metadata that Swift ended up storing.
func (c *Container) SetMetadata(ctx context.Context, metadata map[string]string) (map[string]string, error) {
	hdr := containerMetadataHeaders(metadata)
	_, err := Do(ctx, c.s, schwift.Request{
		Method:            http.MethodPost,
		ContainerName:     c.name,
		Options:           hdr.ToOpts(),
		ExpectStatusCodes: []int{http.StatusNoContent},
		DrainResponseBody: true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string(hdr), nil
}

// ListObjects lists all objects in this container whose names start with the
// given prefix, in lexical order. Paginated listings are followed until the
// end.
func (c *Container) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo
	marker := ""
	for {
		page, err := c.listObjectsPage(ctx, prefix, marker)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return result, nil
		}
		result = append(result, page...)
		marker = page[len(page)-1].Name
	}
}

func (c *Container) listObjectsPage(ctx context.Context, prefix, marker string) ([]ObjectInfo, error) {
	values := url.Values{"format": {"json"}}
	if prefix != "" {
		values.Set("prefix", prefix)
	}
	if marker != "" {
		values.Set("marker", marker)
	}

	resp, err := Do(ctx, c.s, schwift.Request{
		Method:            http.MethodGet,
		ContainerName:     c.name,
		Options:           &schwift.RequestOptions{Values: values},
		ExpectStatusCodes: []int{http.StatusOK, http.StatusNoContent},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	var page []ObjectInfo
	err = json.NewDecoder(resp.Body).Decode(&page)
	if err != nil {
		return nil, fmt.Errorf("cannot parse object listing of container %s: %w", c.name, err)
	}
	return page, nil
}

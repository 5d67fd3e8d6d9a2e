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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/majewsky/schwift"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/swiftlo/pkg/swift"
)

// DefaultPrefix is the segment prefix of a DynamicLargeObject when none is
// given.
const DefaultPrefix = "default"

// DynamicLargeObject is a large object whose manifest points to all objects
// below a prefix in its container. Swift concatenates these objects in
// lexical order of their names when the large object is downloaded.
type DynamicLargeObject struct {
	c      *swift.Container
	name   string
	prefix string
	opts   Options
}

// NewDynamicLargeObject returns a handle for the DLO with the given name.
// Segments are placed below "<prefix>/" in the same container. If prefix is
// empty, DefaultPrefix is used.
//
// Swift concatenates every object whose name starts with prefix, so a prefix
// that is a leading substring of another DLO's prefix (e.g. "backup" and
// "backup2") mixes their segments. A trailing slash ("backup/") avoids that.
func NewDynamicLargeObject(c *swift.Container, name, prefix string, opts Options) *DynamicLargeObject {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &DynamicLargeObject{c: c, name: name, prefix: prefix, opts: opts}
}

// Name returns the name of the manifest object.
func (d *DynamicLargeObject) Name() string {
	return d.name
}

// Prefix returns the segment prefix.
func (d *DynamicLargeObject) Prefix() string {
	return d.prefix
}

// SetPrefix changes the segment prefix. This only affects subsequent calls;
// an already published manifest must be replaced with CreateManifest.
func (d *DynamicLargeObject) SetPrefix(prefix string) {
	d.prefix = prefix
}

// ManifestObject returns a handle for the object that holds the manifest.
func (d *DynamicLargeObject) ManifestObject() *swift.Segment {
	return d.c.Object(d.name)
}

func (d *DynamicLargeObject) strategy() string           { return "dlo" }
func (d *DynamicLargeObject) container() *swift.Container { return d.c }

func (d *DynamicLargeObject) segmentObjectName(segmentName string) string {
	return strings.TrimSuffix(d.prefix, "/") + "/" + segmentName
}

func (d *DynamicLargeObject) publish(ctx context.Context, _ []uploadedSegment) error {
	return d.CreateManifest(ctx)
}

// CreateFromStreams implements the LargeObject interface.
func (d *DynamicLargeObject) CreateFromStreams(ctx context.Context, sources []io.Reader) (map[string]swift.UploadResult, error) {
	return createFromStreams(ctx, d, d.opts, sources)
}

// CreateFromStream implements the LargeObject interface.
func (d *DynamicLargeObject) CreateFromStream(ctx context.Context, source io.Reader) (map[string]swift.UploadResult, error) {
	return createFromStreams(ctx, d, d.opts, []io.Reader{source})
}

// CreateFromDisk implements the LargeObject interface.
func (d *DynamicLargeObject) CreateFromDisk(ctx context.Context, path string, chunkSize int64) (map[string]swift.UploadResult, error) {
	return createFromDisk(ctx, d, d.opts, path, chunkSize)
}

func (d *DynamicLargeObject) manifestPointer() string {
	return url.PathEscape(d.c.Name()) + "/" + url.PathEscape(d.prefix)
}

// CreateManifest writes the manifest object, replacing any existing object
// with the same name. The manifest is an empty object whose X-Object-Manifest
// header points to the container and prefix of this DLO.
func (d *DynamicLargeObject) CreateManifest(ctx context.Context) error {
	hdr := schwift.NewObjectHeaders()
	hdr.Set("X-Object-Manifest", d.manifestPointer())
	_, err := swift.Do(ctx, d.c.Session(), schwift.Request{
		Method:            http.MethodPut,
		ContainerName:     d.c.Name(),
		ObjectName:        d.name,
		Options:           hdr.ToOpts(),
		Body:              strings.NewReader(""),
		ExpectStatusCodes: []int{http.StatusCreated},
		DrainResponseBody: true,
	})
	manifestWritesCounter.WithLabelValues(d.strategy(), resultLabel(err)).Inc()
	if err != nil {
		return err
	}
	logg.Info("published DLO manifest %s/%s -> %s", d.c.Name(), d.name, d.manifestPointer())
	return nil
}

// ContentStream implements the LargeObject interface. If wantManifest is
// false, the concatenated segments are returned.
//
// If wantManifest is true, the body of the manifest object is returned,
// followed by the value of its X-Object-Manifest header. Use ManifestPointer
// to obtain the header value on its own.
func (d *DynamicLargeObject) ContentStream(ctx context.Context, wantManifest bool) (io.ReadCloser, error) {
	if !wantManifest {
		return d.ManifestObject().ContentStream(ctx)
	}

	resp, err := swift.Do(ctx, d.c.Session(), schwift.Request{
		Method:            http.MethodGet,
		ContainerName:     d.c.Name(),
		ObjectName:        d.name,
		Options:           &schwift.RequestOptions{Values: url.Values{"multipart-manifest": {"get"}}},
		ExpectStatusCodes: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	pointer := resp.Header.Get("X-Object-Manifest")
	return readCloser{
		Reader: io.MultiReader(resp.Body, strings.NewReader(pointer)),
		Closer: resp.Body,
	}, nil
}

// ManifestPointer returns the container name and prefix that the published
// manifest points to. This can differ from Container().Name() and Prefix() if
// the manifest was written by someone else.
func (d *DynamicLargeObject) ManifestPointer(ctx context.Context) (containerName, prefix string, err error) {
	hdr, err := d.ManifestObject().Headers(ctx)
	if err != nil {
		return "", "", err
	}
	pointer := hdr.Get("X-Object-Manifest")
	escapedContainer, escapedPrefix, ok := strings.Cut(pointer, "/")
	if !ok {
		return "", "", fmt.Errorf("%s/%s is not a dynamic large object (X-Object-Manifest is %q)", d.c.Name(), d.name, pointer)
	}
	containerName, err = url.PathUnescape(escapedContainer)
	if err != nil {
		return "", "", fmt.Errorf("malformed X-Object-Manifest on %s/%s: %w", d.c.Name(), d.name, err)
	}
	prefix, err = url.PathUnescape(escapedPrefix)
	if err != nil {
		return "", "", fmt.Errorf("malformed X-Object-Manifest on %s/%s: %w", d.c.Name(), d.name, err)
	}
	return containerName, prefix, nil
}

// Segments lists the objects that the manifest currently concatenates, in
// order. Swift matches by plain string prefix, so this includes every object
// in this container whose name starts with Prefix(), not only those created
// by this DLO.
func (d *DynamicLargeObject) Segments(ctx context.Context) ([]swift.ObjectInfo, error) {
	return d.c.ListObjects(ctx, d.prefix)
}

// Delete implements the LargeObject interface. The segments are not deleted.
func (d *DynamicLargeObject) Delete(ctx context.Context) error {
	return d.ManifestObject().Delete(ctx)
}

// Metadata returns the user metadata of the manifest object.
func (d *DynamicLargeObject) Metadata(ctx context.Context) (map[string]string, error) {
	return d.ManifestObject().Metadata(ctx)
}

// SetMetadata replaces the user metadata of the manifest object. See
// swift.Segment.SetMetadata for details.
func (d *DynamicLargeObject) SetMetadata(ctx context.Context, metadata map[string]string) (map[string]string, error) {
	return d.ManifestObject().SetMetadata(ctx, metadata)
}

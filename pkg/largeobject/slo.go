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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jpillora/longestcommon"
	"github.com/majewsky/schwift"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/swiftlo/pkg/swift"
)

// ErrMissingManifest is returned by StaticLargeObject.CreateManifest when no
// manifest is given. No request is sent in that case.
var ErrMissingManifest = errors.New("cannot create static large object: no manifest given")

// ManifestEntry is one segment reference in the manifest of a
// StaticLargeObject. Swift validates Etag and SizeBytes against the segment
// if they are given.
type ManifestEntry struct {
	// Path is "<container>/<object>".
	Path      string `json:"path"`
	Etag      string `json:"etag,omitempty"`
	SizeBytes uint64 `json:"size_bytes,omitempty"`
	// Range selects a part of the segment, e.g. "0-99".
	Range string `json:"range,omitempty"`
}

// Manifest is the parsed manifest of a StaticLargeObject.
type Manifest []ManifestEntry

// CommonPrefix returns the longest common prefix of all segment paths in
// this manifest. For manifests written by StaticLargeObject.CreateFromStreams,
// this always starts with "<container>/".
func (m Manifest) CommonPrefix() string {
	paths := make([]string, len(m))
	for idx, entry := range m {
		paths[idx] = entry.Path
	}
	return longestcommon.Prefix(paths)
}

// TotalSizeBytes returns the sum of all SizeBytes in this manifest.
func (m Manifest) TotalSizeBytes() uint64 {
	var sum uint64
	for _, entry := range m {
		sum += entry.SizeBytes
	}
	return sum
}

// StaticLargeObject is a large object whose manifest explicitly lists its
// segments. The segments are stored in the same container as the manifest.
type StaticLargeObject struct {
	c    *swift.Container
	name string
	opts Options
}

// NewStaticLargeObject returns a handle for the SLO with the given name.
func NewStaticLargeObject(c *swift.Container, name string, opts Options) *StaticLargeObject {
	return &StaticLargeObject{c: c, name: name, opts: opts}
}

// Name returns the name of the manifest object.
func (s *StaticLargeObject) Name() string {
	return s.name
}

// ManifestObject returns a handle for the object that holds the manifest.
func (s *StaticLargeObject) ManifestObject() *swift.Segment {
	return s.c.Object(s.name)
}

func (s *StaticLargeObject) strategy() string           { return "slo" }
func (s *StaticLargeObject) container() *swift.Container { return s.c }

func (s *StaticLargeObject) segmentObjectName(segmentName string) string {
	return segmentName
}

func (s *StaticLargeObject) publish(ctx context.Context, segments []uploadedSegment) error {
	entries := make([]ManifestEntry, len(segments))
	for idx, seg := range segments {
		entries[idx] = ManifestEntry{
			Path:      seg.Object.FullName(),
			Etag:      seg.Result.Etag,
			SizeBytes: seg.Result.SizeBytes,
		}
	}
	return s.CreateManifest(ctx, entries)
}

// CreateFromStreams implements the LargeObject interface.
func (s *StaticLargeObject) CreateFromStreams(ctx context.Context, sources []io.Reader) (map[string]swift.UploadResult, error) {
	return createFromStreams(ctx, s, s.opts, sources)
}

// CreateFromStream implements the LargeObject interface.
func (s *StaticLargeObject) CreateFromStream(ctx context.Context, source io.Reader) (map[string]swift.UploadResult, error) {
	return createFromStreams(ctx, s, s.opts, []io.Reader{source})
}

// CreateFromDisk implements the LargeObject interface.
func (s *StaticLargeObject) CreateFromDisk(ctx context.Context, path string, chunkSize int64) (map[string]swift.UploadResult, error) {
	return createFromDisk(ctx, s, s.opts, path, chunkSize)
}

// CreateManifest uploads the given manifest, replacing any existing object
// with the same name. Swift rejects the manifest if any of the referenced
// segments does not exist or does not match the given Etag or size.
//
// A nil manifest is rejected with ErrMissingManifest. An empty non-nil
// manifest is sent as is.
func (s *StaticLargeObject) CreateManifest(ctx context.Context, entries []ManifestEntry) error {
	if entries == nil {
		return ErrMissingManifest
	}
	buf, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	_, err = swift.Do(ctx, s.c.Session(), schwift.Request{
		Method:            http.MethodPut,
		ContainerName:     s.c.Name(),
		ObjectName:        s.name,
		Options:           &schwift.RequestOptions{Values: url.Values{"multipart-manifest": {"put"}}},
		Body:              bytes.NewReader(buf),
		ExpectStatusCodes: []int{http.StatusCreated},
		DrainResponseBody: true,
	})
	manifestWritesCounter.WithLabelValues(s.strategy(), resultLabel(err)).Inc()
	if err != nil {
		return err
	}
	logg.Info("published SLO manifest %s/%s with %d segments", s.c.Name(), s.name, len(entries))
	return nil
}

// ContentStream implements the LargeObject interface. If wantManifest is
// true, the stored manifest is returned as JSON.
func (s *StaticLargeObject) ContentStream(ctx context.Context, wantManifest bool) (io.ReadCloser, error) {
	if !wantManifest {
		return s.ManifestObject().ContentStream(ctx)
	}
	resp, err := s.getManifest(ctx, url.Values{"multipart-manifest": {"get"}})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ReadManifest downloads and parses the manifest.
func (s *StaticLargeObject) ReadManifest(ctx context.Context) (Manifest, error) {
	resp, err := s.getManifest(ctx, url.Values{"multipart-manifest": {"get"}, "format": {"raw"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var m Manifest
	err = json.NewDecoder(resp.Body).Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("cannot parse manifest of %s/%s: %w", s.c.Name(), s.name, err)
	}
	return m, nil
}

func (s *StaticLargeObject) getManifest(ctx context.Context, values url.Values) (*http.Response, error) {
	return swift.Do(ctx, s.c.Session(), schwift.Request{
		Method:            http.MethodGet,
		ContainerName:     s.c.Name(),
		ObjectName:        s.name,
		Options:           &schwift.RequestOptions{Values: values},
		ExpectStatusCodes: []int{http.StatusOK},
	})
}

// Delete implements the LargeObject interface. The segments are not deleted;
// use DeleteWithContent for that.
func (s *StaticLargeObject) Delete(ctx context.Context) error {
	return s.ManifestObject().Delete(ctx)
}

// DeleteWithContent deletes the manifest and all segments referenced by it in
// a single request.
func (s *StaticLargeObject) DeleteWithContent(ctx context.Context) error {
	_, err := swift.Do(ctx, s.c.Session(), schwift.Request{
		Method:            http.MethodDelete,
		ContainerName:     s.c.Name(),
		ObjectName:        s.name,
		Options:           &schwift.RequestOptions{Values: url.Values{"multipart-manifest": {"delete"}}},
		ExpectStatusCodes: []int{http.StatusOK},
		DrainResponseBody: true,
	})
	return err
}

// Metadata returns the user metadata of the manifest object.
func (s *StaticLargeObject) Metadata(ctx context.Context) (map[string]string, error) {
	return s.ManifestObject().Metadata(ctx)
}

// SetMetadata replaces the user metadata of the manifest object. See
// swift.Segment.SetMetadata for details.
func (s *StaticLargeObject) SetMetadata(ctx context.Context, metadata map[string]string) (map[string]string, error) {
	return s.ManifestObject().SetMetadata(ctx, metadata)
}

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
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/majewsky/schwift"
)

// Segment is a handle for a single Swift object. It is the building block of
// large objects, but works for any plain object. Nothing is cached: every
// method call results in exactly one request.
type Segment struct {
	c    *Container
	name string
}

// UploadResult describes a successfully uploaded object.
type UploadResult struct {
	// Etag is the MD5 checksum of the object content as reported by Swift.
	Etag      string
	SizeBytes uint64
}

// NewSegment returns a handle for the object with the given name in the given
// container.
func NewSegment(c *Container, name string) *Segment {
	return &Segment{c: c, name: name}
}

// Name returns the object name.
func (s *Segment) Name() string {
	return s.name
}

// Container returns the container that this object is stored in.
func (s *Segment) Container() *Container {
	return s.c
}

// FullName returns the container name and the object name joined by a slash,
// which is how large object manifests refer to objects.
func (s *Segment) FullName() string {
	return s.c.name + "/" + s.name
}

// CreateFromStream uploads the object with a PUT request, streaming the
// content from the given reader until EOF. An existing object is replaced.
//
// The content is sent with chunked transfer encoding. Its MD5 checksum is
// computed on the fly and compared to the Etag returned by Swift, so
// schwift.ErrChecksumMismatch may be returned after the object has been
// written.
func (s *Segment) CreateFromStream(ctx context.Context, content io.Reader) (UploadResult, error) {
	tracker := &trackingReader{Reader: content, Hasher: md5.New()}
	var body io.Reader = tracker
	if content == nil {
		body = nil
	}

	resp, err := Do(ctx, s.c.s, schwift.Request{
		Method:            http.MethodPut,
		ContainerName:     s.c.name,
		ObjectName:        s.name,
		Body:              body,
		ExpectStatusCodes: []int{http.StatusCreated},
		DrainResponseBody: true,
	})
	if err != nil {
		return UploadResult{}, err
	}

	expectedEtag := hex.EncodeToString(tracker.Hasher.Sum(nil))
	actualEtag := strings.Trim(resp.Header.Get("Etag"), `"`)
	if actualEtag != "" && actualEtag != expectedEtag {
		return UploadResult{}, fmt.Errorf("while uploading %s: %w", s.FullName(), schwift.ErrChecksumMismatch)
	}
	return UploadResult{Etag: expectedEtag, SizeBytes: tracker.BytesRead}, nil
}

// CreateFromDisk uploads the whole file at the given path into this object.
// The file is not split; see package largeobject for that.
func (s *Segment) CreateFromDisk(ctx context.Context, path string) (UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return UploadResult{}, err
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return UploadResult{}, err
	}
	return s.CreateFromStream(ctx, io.NewSectionReader(file, 0, fi.Size()))
}

// ContentStream downloads the object with a GET request. The caller must
// close the returned reader.
func (s *Segment) ContentStream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := Do(ctx, s.c.s, schwift.Request{
		Method:            http.MethodGet,
		ContainerName:     s.c.name,
		ObjectName:        s.name,
		ExpectStatusCodes: []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Metadata returns the object's user metadata, with the "X-Object-Meta-"
// prefix removed from the keys.
func (s *Segment) Metadata(ctx context.Context) (map[string]string, error) {
	hdr, err := s.Headers(ctx)
	if err != nil {
		return nil, err
	}
	return metadataFromHeaders(hdr, ObjectMetadataPrefix), nil
}

// Headers returns all response headers of a HEAD request on the object.
func (s *Segment) Headers(ctx context.Context) (http.Header, error) {
	resp, err := Do(ctx, s.c.s, schwift.Request{
		Method:            http.MethodHead,
		ContainerName:     s.c.name,
		ObjectName:        s.name,
		ExpectStatusCodes: []int{http.StatusOK, http.StatusNoContent},
		DrainResponseBody: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Header, nil
}

// SetMetadata replaces the user metadata of the object with a POST request.
// Keys with empty values are removed by Swift. The result contains the
// headers that were sent, not the metadata that Swift ended up storing; call
// Metadata() to find out.
func (s *Segment) SetMetadata(ctx context.Context, metadata map[string]string) (map[string]string, error) {
	hdr := objectMetadataHeaders(metadata)
	_, err := Do(ctx, s.c.s, schwift.Request{
		Method:            http.MethodPost,
		ContainerName:     s.c.name,
		ObjectName:        s.name,
		Options:           hdr.ToOpts(),
		ExpectStatusCodes: []int{http.StatusAccepted, http.StatusNoContent},
		DrainResponseBody: true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string(hdr), nil
}

// Delete deletes the object. Deleting a nonexistent object is an error (404),
// as is a conflict (409).
func (s *Segment) Delete(ctx context.Context) error {
	_, err := Do(ctx, s.c.s, schwift.Request{
		Method:            http.MethodDelete,
		ContainerName:     s.c.name,
		ObjectName:        s.name,
		ExpectStatusCodes: []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent},
		DrainResponseBody: true,
	})
	return err
}

type trackingReader struct {
	Reader    io.Reader
	BytesRead uint64
	Hasher    hash.Hash
}

func (r *trackingReader) Read(buf []byte) (int, error) {
	n, err := r.Reader.Read(buf)
	r.BytesRead += uint64(n)
	r.Hasher.Write(buf[:n])
	return n, err
}

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
	"io"

	"github.com/sapcc/go-bits/logg"
	"golang.org/x/sync/errgroup"

	"github.com/sapcc/swiftlo/pkg/swift"
)

// LargeObject is the common interface of DynamicLargeObject and
// StaticLargeObject.
type LargeObject interface {
	// CreateFromStreams uploads each source as one segment, concurrently, and
	// then publishes a manifest that concatenates the segments in the order of
	// the sources. The result maps the full object names of the segments (for
	// a DLO, including the prefix) to the respective upload results, so each
	// key can be passed to swift.Container.Object().
	//
	// If any upload fails, the first error is returned and no manifest is
	// published. Segments that were uploaded successfully are left in place.
	CreateFromStreams(ctx context.Context, sources []io.Reader) (map[string]swift.UploadResult, error)
	// CreateFromStream is CreateFromStreams with a single source. The source is
	// subject to Swift's size limit for single objects.
	CreateFromStream(ctx context.Context, source io.Reader) (map[string]swift.UploadResult, error)
	// CreateFromDisk splits the file at the given path into chunks of the given
	// size (see ChunkRanges) and uploads them with CreateFromStreams.
	CreateFromDisk(ctx context.Context, path string, chunkSize int64) (map[string]swift.UploadResult, error)
	// ContentStream downloads the large object. If wantManifest is true, the
	// manifest is downloaded instead of the concatenated segments.
	ContentStream(ctx context.Context, wantManifest bool) (io.ReadCloser, error)
	// Delete deletes the manifest, but not the segments.
	Delete(ctx context.Context) error
}

var (
	_ LargeObject = &DynamicLargeObject{}
	_ LargeObject = &StaticLargeObject{}
)

// Options contains optional settings for DynamicLargeObject and
// StaticLargeObject. The zero value is valid.
type Options struct {
	// Tokens generates the unique part of segment names. If nil,
	// UUIDTokenSource is used.
	Tokens TokenSource
	// MaxParallelUploads limits how many segments are uploaded at the same
	// time. If 0, all segments are uploaded at once.
	MaxParallelUploads int
}

func (o Options) tokenSource() TokenSource {
	if o.Tokens == nil {
		return UUIDTokenSource{}
	}
	return o.Tokens
}

// assembly is the part of the large object logic that differs between DLO and
// SLO: where segments go, and how the manifest refers to them.
type assembly interface {
	strategy() string
	container() *swift.Container
	segmentObjectName(segmentName string) string
	publish(ctx context.Context, segments []uploadedSegment) error
}

type uploadedSegment struct {
	Object   *swift.Segment
	Result   swift.UploadResult
	Uploaded bool
}

func createFromStreams(ctx context.Context, a assembly, opts Options, sources []io.Reader) (map[string]swift.UploadResult, error) {
	if !a.container().Session().IsConnected() {
		return nil, swift.ErrNotConnected
	}

	tokens := opts.tokenSource()
	segments := make([]uploadedSegment, len(sources))
	for idx := range sources {
		token, err := tokens.NewToken()
		if err != nil {
			return nil, err
		}
		segments[idx] = uploadedSegment{
			Object: a.container().Object(a.segmentObjectName(SegmentName(idx, token))),
		}
	}

	//once started, segment uploads run to completion even if ctx is cancelled
	uploadCtx := context.WithoutCancel(ctx)
	var eg errgroup.Group
	if opts.MaxParallelUploads > 0 {
		eg.SetLimit(opts.MaxParallelUploads)
	}
	for idx, source := range sources {
		seg := &segments[idx]
		eg.Go(func() error {
			result, err := seg.Object.CreateFromStream(uploadCtx, source)
			segmentUploadsCounter.WithLabelValues(a.strategy(), resultLabel(err)).Inc()
			if err != nil {
				logg.Error("upload of segment %s failed: %s", seg.Object.FullName(), err.Error())
				return err
			}
			segmentUploadBytesCounter.WithLabelValues(a.strategy()).Add(float64(result.SizeBytes))
			logg.Debug("uploaded segment %s (%d bytes)", seg.Object.FullName(), result.SizeBytes)
			seg.Result = result
			seg.Uploaded = true
			return nil
		})
	}

	err := eg.Wait()
	if err != nil {
		for _, seg := range segments {
			if seg.Uploaded {
				logg.Info("leaving orphaned segment %s after failed upload", seg.Object.FullName())
			}
		}
		return nil, err
	}

	err = a.publish(ctx, segments)
	if err != nil {
		return nil, err
	}

	result := make(map[string]swift.UploadResult, len(segments))
	for _, seg := range segments {
		result[seg.Object.Name()] = seg.Result
	}
	return result, nil
}

func createFromDisk(ctx context.Context, a assembly, opts Options, path string, chunkSize int64) (map[string]swift.UploadResult, error) {
	if !a.container().Session().IsConnected() {
		return nil, swift.ErrNotConnected
	}
	file, readers, err := splitFile(path, chunkSize)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return createFromStreams(ctx, a, opts, readers)
}

type readCloser struct {
	io.Reader
	io.Closer
}

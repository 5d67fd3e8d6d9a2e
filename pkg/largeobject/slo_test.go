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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/majewsky/schwift"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sapcc/go-bits/assert"
)

func TestSLOFromDisk(t *testing.T) {
	srv, c := setupContainer(t)
	ctx := context.Background()
	path, content := makeTestFile(t, 1000)
	uploadsBefore := testutil.ToFloat64(segmentUploadsCounter.WithLabelValues("slo", "success"))
	bytesBefore := testutil.ToFloat64(segmentUploadBytesCounter.WithLabelValues("slo"))

	slo := NewStaticLargeObject(c, "big.bin", testOptions())
	result, err := slo.CreateFromDisk(ctx, path, 300)
	expectSuccess(t, err)
	assert.DeepEqual(t, "result count", len(result), 4)
	assert.DeepEqual(t, "stored objects", srv.ObjectNames("foo"), []string{
		"000000000_t0",
		"000000001_t1",
		"000000002_t2",
		"000000003_t3",
		"big.bin",
	})
	assert.DeepEqual(t, "content", readAll(t)(slo.ContentStream(ctx, false)), string(content))

	assert.DeepEqual(t, "uploads", testutil.ToFloat64(segmentUploadsCounter.WithLabelValues("slo", "success"))-uploadsBefore, 4.0)
	assert.DeepEqual(t, "bytes", testutil.ToFloat64(segmentUploadBytesCounter.WithLabelValues("slo"))-bytesBefore, 1000.0)

	manifest, err := slo.ReadManifest(ctx)
	expectSuccess(t, err)
	assert.DeepEqual(t, "manifest", manifest, Manifest{
		{Path: "foo/000000000_t0", Etag: result["000000000_t0"].Etag, SizeBytes: 300},
		{Path: "foo/000000001_t1", Etag: result["000000001_t1"].Etag, SizeBytes: 300},
		{Path: "foo/000000002_t2", Etag: result["000000002_t2"].Etag, SizeBytes: 300},
		{Path: "foo/000000003_t3", Etag: result["000000003_t3"].Etag, SizeBytes: 100},
	})
	assert.DeepEqual(t, "CommonPrefix", manifest.CommonPrefix(), "foo/00000000")
	assert.DeepEqual(t, "TotalSizeBytes", manifest.TotalSizeBytes(), uint64(1000))
}

func TestSLOFromStreamsKeepsOrder(t *testing.T) {
	_, c := setupContainer(t)
	ctx := context.Background()

	slo := NewStaticLargeObject(c, "ordered", testOptions())
	result, err := slo.CreateFromStreams(ctx, []io.Reader{
		strings.NewReader("one,"),
		strings.NewReader("two,"),
		strings.NewReader("three"),
	})
	expectSuccess(t, err)
	assert.DeepEqual(t, "result count", len(result), 3)
	assert.DeepEqual(t, "content", readAll(t)(slo.ContentStream(ctx, false)), "one,two,three")

	//the manifest stream is the manifest as stored
	var entries []ManifestEntry
	err = json.Unmarshal([]byte(readAll(t)(slo.ContentStream(ctx, true))), &entries)
	expectSuccess(t, err)
	assert.DeepEqual(t, "manifest paths", []string{entries[0].Path, entries[1].Path, entries[2].Path},
		[]string{"foo/000000000_t0", "foo/000000001_t1", "foo/000000002_t2"})
}

func TestSLOCreateManifest(t *testing.T) {
	srv, c := setupContainer(t)
	ctx := context.Background()
	for _, name := range []string{"part1", "part2"} {
		_, err := c.Object(name).CreateFromStream(ctx, strings.NewReader(name+";"))
		expectSuccess(t, err)
	}
	slo := NewStaticLargeObject(c, "custom", testOptions())

	//a missing manifest is rejected without sending anything
	countBefore := srv.RequestCount()
	err := slo.CreateManifest(ctx, nil)
	if !errors.Is(err, ErrMissingManifest) {
		t.Errorf("expected ErrMissingManifest, got %#v", err)
	}
	assert.DeepEqual(t, "request count", srv.RequestCount()-countBefore, 0)

	//writing the same manifest twice is fine
	entries := []ManifestEntry{
		{Path: "foo/part2"},
		{Path: "foo/part1", Range: "0-3"},
	}
	expectSuccess(t, slo.CreateManifest(ctx, entries))
	expectSuccess(t, slo.CreateManifest(ctx, entries))
	assert.DeepEqual(t, "content", readAll(t)(slo.ContentStream(ctx, false)), "part2;part")

	//Swift validates the manifest
	err = slo.CreateManifest(ctx, []ManifestEntry{{Path: "foo/part3"}})
	if !schwift.Is(err, http.StatusBadRequest) {
		t.Errorf("expected 400 error, got %#v", err)
	}
	err = slo.CreateManifest(ctx, []ManifestEntry{{Path: "foo/part1", SizeBytes: 42}})
	if !schwift.Is(err, http.StatusBadRequest) {
		t.Errorf("expected 400 error, got %#v", err)
	}
}

func TestSLODelete(t *testing.T) {
	srv, c := setupContainer(t)
	ctx := context.Background()

	slo := NewStaticLargeObject(c, "first", testOptions())
	_, err := slo.CreateFromStreams(ctx, []io.Reader{strings.NewReader("a"), strings.NewReader("b")})
	expectSuccess(t, err)

	//plain delete removes only the manifest
	expectSuccess(t, slo.Delete(ctx))
	assert.DeepEqual(t, "stored objects", srv.ObjectNames("foo"), []string{
		"000000000_t0",
		"000000001_t1",
	})

	//delete with content removes the segments as well
	slo = NewStaticLargeObject(c, "second", Options{Tokens: &sequentialTokens{next: 10}})
	_, err = slo.CreateFromStreams(ctx, []io.Reader{strings.NewReader("c"), strings.NewReader("d")})
	expectSuccess(t, err)
	expectSuccess(t, slo.DeleteWithContent(ctx))
	assert.DeepEqual(t, "stored objects", srv.ObjectNames("foo"), []string{
		"000000000_t0",
		"000000001_t1",
	})

	err = slo.DeleteWithContent(ctx)
	if !schwift.Is(err, http.StatusNotFound) {
		t.Errorf("expected 404 error, got %#v", err)
	}
}

func TestSLOUploadFailure(t *testing.T) {
	srv, c := setupContainer(t)
	srv.FailObjectUploads = func(containerName, objectName string) bool {
		return objectName == "000000000_t0"
	}

	slo := NewStaticLargeObject(c, "broken", testOptions())
	_, err := slo.CreateFromStreams(context.Background(), []io.Reader{strings.NewReader("a"), strings.NewReader("b")})
	if !schwift.Is(err, http.StatusServiceUnavailable) {
		t.Errorf("expected 503 error, got %#v", err)
	}
	assert.DeepEqual(t, "stored objects", srv.ObjectNames("foo"), []string{"000000001_t1"})
}

func TestSLOMetadata(t *testing.T) {
	_, c := setupContainer(t)
	ctx := context.Background()

	var lo LargeObject = NewStaticLargeObject(c, "withmeta", testOptions())
	_, err := lo.CreateFromStream(ctx, strings.NewReader("content"))
	expectSuccess(t, err)

	slo := lo.(*StaticLargeObject)
	sent, err := slo.SetMetadata(ctx, map[string]string{"owner": "me"})
	expectSuccess(t, err)
	assert.DeepEqual(t, "sent headers", sent, map[string]string{"X-Object-Meta-Owner": "me"})
	metadata, err := slo.Metadata(ctx)
	expectSuccess(t, err)
	assert.DeepEqual(t, "metadata", metadata, map[string]string{"owner": "me"})
}

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
	"io"
	"os"
)

// MaxChunkSize is the largest segment size that Swift accepts by default. It
// is also used as the chunk size when none is given.
const MaxChunkSize int64 = 5 << 30 // 5 GiB

// ByteRange is a half-open range [Offset, Offset+Length) within a file.
type ByteRange struct {
	Offset int64
	Length int64
}

// EffectiveChunkSize returns the chunk size that is actually used when the
// caller asks for the given one: Non-positive values select MaxChunkSize,
// larger values are silently reduced to MaxChunkSize.
func EffectiveChunkSize(chunkSize int64) int64 {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return MaxChunkSize
	}
	return chunkSize
}

// ChunkRanges splits [0, size) into ceil(size/chunkSize) contiguous ranges of
// chunkSize bytes each, except for the last one which may be shorter. The
// chunk size is normalized with EffectiveChunkSize first. A size of 0 yields
// no ranges at all.
func ChunkRanges(size, chunkSize int64) []ByteRange {
	chunkSize = EffectiveChunkSize(chunkSize)
	if size <= 0 {
		return nil
	}

	count := (size + chunkSize - 1) / chunkSize
	result := make([]ByteRange, 0, count)
	for offset := int64(0); offset < size; offset += chunkSize {
		length := chunkSize
		if offset+length > size {
			length = size - offset
		}
		result = append(result, ByteRange{Offset: offset, Length: length})
	}
	return result
}

// splitFile opens the file at the given path and returns one reader per
// chunk. All readers share the same file handle, so the returned file must
// stay open until all of them have been consumed.
func splitFile(path string, chunkSize int64) (*os.File, []io.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	ranges := ChunkRanges(fi.Size(), chunkSize)
	readers := make([]io.Reader, len(ranges))
	for idx, r := range ranges {
		readers[idx] = io.NewSectionReader(file, r.Offset, r.Length)
	}
	return file, readers, nil
}

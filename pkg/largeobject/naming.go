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
	"fmt"

	"github.com/gofrs/uuid"
)

// TokenSource generates the random part of segment names. Each call must
// return a token that has not been returned before, so that segments from
// repeated builds do not collide.
type TokenSource interface {
	NewToken() (string, error)
}

// UUIDTokenSource is the default TokenSource. It generates random UUIDs.
type UUIDTokenSource struct{}

// NewToken implements the TokenSource interface.
func (UUIDTokenSource) NewToken() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("cannot generate segment name: %w", err)
	}
	return id.String(), nil
}

// SegmentName builds the name for the segment at the given index within a
// large object. The index is zero-padded to 9 digits, so lexical order of
// segment names equals upload order.
func SegmentName(index int, token string) string {
	return fmt.Sprintf("%09d_%s", index, token)
}

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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sapcc/swiftlo/internal/test/swiftmock"
	"github.com/sapcc/swiftlo/pkg/swift"
)

// sequentialTokens is a TokenSource that returns "t0", "t1", and so on.
type sequentialTokens struct {
	mutex sync.Mutex
	next  int
}

func (s *sequentialTokens) NewToken() (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	token := fmt.Sprintf("t%d", s.next)
	s.next++
	return token, nil
}

func setupContainer(t *testing.T) (*swiftmock.Server, *swift.Container) {
	t.Helper()
	srv := swiftmock.New()
	t.Cleanup(srv.Close)

	account := swift.NewSwauthAccount(srv.AuthURL(), swiftmock.User, swiftmock.Key)
	err := account.Connect()
	if err != nil {
		t.Fatal(err.Error())
	}
	c := account.Container("foo")
	err = c.Create(context.Background())
	if err != nil {
		t.Fatal(err.Error())
	}
	return srv, c
}

func testOptions() Options {
	return Options{Tokens: &sequentialTokens{}}
}

// makeTestFile writes a file of the given size with a recognizable pattern
// and returns its path and content.
func makeTestFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	content := make([]byte, size)
	for idx := range content {
		content[idx] = byte('a' + idx%26)
	}
	path := filepath.Join(t.TempDir(), "data.bin")
	err := os.WriteFile(path, content, 0o644)
	if err != nil {
		t.Fatal(err.Error())
	}
	return path, content
}

// readAll is used as readAll(t)(obj.ContentStream(ctx, false)).
func readAll(t *testing.T) func(io.ReadCloser, error) string {
	return func(r io.ReadCloser, err error) string {
		t.Helper()
		if err != nil {
			t.Fatal(err.Error())
		}
		defer r.Close()
		buf, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err.Error())
		}
		return string(buf)
	}
}

func expectSuccess(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected success, got error: %s", err.Error())
	}
}

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
	"errors"
	"strings"
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/swiftlo/internal/test/swiftmock"
)

func TestAccountConnect(t *testing.T) {
	srv, account := setupAccount(t)

	if !account.IsConnected() {
		t.Error("expected account to be connected")
	}
	assert.DeepEqual(t, "Token", account.Token(), swiftmock.Token)
	if !strings.HasPrefix(account.StorageURL(), strings.TrimSuffix(srv.StorageURL(), "/")) {
		t.Errorf("unexpected storage URL: %q", account.StorageURL())
	}
	expectSuccess(t, account.Container("foo").Create(context.Background()))
	assert.DeepEqual(t, "User-Agent", srv.LastUserAgent(), UserAgent)

	account.Disconnect()
	if account.IsConnected() {
		t.Error("expected account to be disconnected")
	}
	assert.DeepEqual(t, "Token", account.Token(), "")
}

func TestAccountWrongCredentials(t *testing.T) {
	srv := swiftmock.New()
	defer srv.Close()

	account := NewSwauthAccount(srv.AuthURL(), swiftmock.User, "wrong")
	err := account.Connect()
	if err == nil {
		t.Error("expected Connect() to fail with wrong password")
	}
	if account.IsConnected() {
		t.Error("expected account to stay disconnected")
	}

	account.SetPassword(swiftmock.Key)
	expectSuccess(t, account.Connect())
	if !account.IsConnected() {
		t.Error("expected account to be connected after fixing the password")
	}

	//changing credentials drops the connection
	account.SetUsername("other:user")
	if account.IsConnected() {
		t.Error("expected SetUsername() to disconnect the account")
	}
}

func TestNotConnected(t *testing.T) {
	srv := swiftmock.New()
	defer srv.Close()
	ctx := context.Background()

	account := NewSwauthAccount(srv.AuthURL(), swiftmock.User, swiftmock.Key)
	c := account.Container("foo")
	obj := c.Object("bar")

	checks := map[string]error{
		"Container.Create":   c.Create(ctx),
		"Container.Delete":   c.Delete(ctx),
		"Segment.Delete":     obj.Delete(ctx),
		"Segment.CreateFrom": second(obj.CreateFromStream(ctx, strings.NewReader("hello"))),
		"Segment.Metadata":   second(obj.Metadata(ctx)),
		"Segment.Content":    second(obj.ContentStream(ctx)),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s: expected ErrNotConnected, got %#v", name, err)
		}
	}
	assert.DeepEqual(t, "request count", srv.RequestCount(), 0)

	if account.Backend() != nil {
		t.Error("expected no backend on a disconnected account")
	}
}

func second[T any](_ T, err error) error {
	return err
}

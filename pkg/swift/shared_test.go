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
	"testing"

	"github.com/majewsky/schwift"

	"github.com/sapcc/swiftlo/internal/test/swiftmock"
)

func setupAccount(t *testing.T) (*swiftmock.Server, *Account) {
	t.Helper()
	srv := swiftmock.New()
	t.Cleanup(srv.Close)

	account := NewSwauthAccount(srv.AuthURL(), swiftmock.User, swiftmock.Key)
	err := account.Connect()
	if err != nil {
		t.Fatal(err.Error())
	}
	return srv, account
}

func setupContainer(t *testing.T, name string) (*swiftmock.Server, *Container) {
	t.Helper()
	srv, account := setupAccount(t)
	c := account.Container(name)
	err := c.Create(context.Background())
	if err != nil {
		t.Fatal(err.Error())
	}
	return srv, c
}

func expectSuccess(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected success, got error: %s", err.Error())
	}
}

func expectStatusCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error with status %d, got success", code)
	} else if !schwift.Is(err, code) {
		t.Errorf("expected error with status %d, got: %s", code, err.Error())
	}
}

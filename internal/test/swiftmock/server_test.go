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

package swiftmock

import (
	"net/http"
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func TestAuthentication(t *testing.T) {
	s := New()
	defer s.Close()
	h := s.Handler()

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/auth/v1.0",
		Header:       map[string]string{"X-Auth-User": User, "X-Auth-Key": "wrong"},
		ExpectStatus: http.StatusUnauthorized,
	}.Check(t, h)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/auth/v1.0",
		Header:       map[string]string{"X-Auth-User": User, "X-Auth-Key": Key},
		ExpectStatus: http.StatusOK,
		ExpectHeader: map[string]string{"X-Auth-Token": Token},
	}.Check(t, h)

	assert.HTTPRequest{
		Method:       "PUT",
		Path:         "/v1/" + AccountName + "/foo",
		ExpectStatus: http.StatusUnauthorized,
	}.Check(t, h)
}

func TestContainerLifecycle(t *testing.T) {
	s := New()
	defer s.Close()
	h := s.Handler()
	authHeader := map[string]string{"X-Auth-Token": Token}
	path := "/v1/" + AccountName + "/foo"

	assert.HTTPRequest{Method: "PUT", Path: path, Header: authHeader, ExpectStatus: http.StatusCreated}.Check(t, h)
	assert.HTTPRequest{Method: "PUT", Path: path, Header: authHeader, ExpectStatus: http.StatusAccepted}.Check(t, h)
	assert.HTTPRequest{Method: "HEAD", Path: path + "/", Header: authHeader, ExpectStatus: http.StatusNoContent}.Check(t, h)

	assert.HTTPRequest{
		Method:       "PUT",
		Path:         path + "/bar",
		Header:       authHeader,
		Body:         assert.StringData("hello"),
		ExpectStatus: http.StatusCreated,
		ExpectHeader: map[string]string{"Etag": "5d41402abc4b2a76b9719d911017c592"},
	}.Check(t, h)

	//non-empty containers cannot be deleted
	assert.HTTPRequest{Method: "DELETE", Path: path, Header: authHeader, ExpectStatus: http.StatusConflict}.Check(t, h)

	s.FailObjectDeletes = func(containerName, objectName string) bool { return true }
	assert.HTTPRequest{Method: "DELETE", Path: path + "/bar", Header: authHeader, ExpectStatus: http.StatusConflict}.Check(t, h)
	s.FailObjectDeletes = nil

	assert.HTTPRequest{
		Method:       "GET",
		Path:         path + "/bar",
		Header:       authHeader,
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.StringData("hello"),
	}.Check(t, h)

	assert.HTTPRequest{Method: "DELETE", Path: path + "/bar", Header: authHeader, ExpectStatus: http.StatusNoContent}.Check(t, h)
	assert.HTTPRequest{Method: "DELETE", Path: path + "/bar", Header: authHeader, ExpectStatus: http.StatusNotFound}.Check(t, h)
	assert.HTTPRequest{Method: "DELETE", Path: path, Header: authHeader, ExpectStatus: http.StatusNoContent}.Check(t, h)
	assert.HTTPRequest{Method: "DELETE", Path: path, Header: authHeader, ExpectStatus: http.StatusNotFound}.Check(t, h)
}

func TestLargeObjectResolution(t *testing.T) {
	s := New()
	defer s.Close()
	h := s.Handler()
	authHeader := map[string]string{"X-Auth-Token": Token}
	s.CreateContainer("foo")
	path := "/v1/" + AccountName + "/foo"

	for _, name := range []string{"seg/2", "seg/1"} {
		assert.HTTPRequest{
			Method:       "PUT",
			Path:         path + "/" + name,
			Header:       authHeader,
			Body:         assert.StringData(name + ";"),
			ExpectStatus: http.StatusCreated,
		}.Check(t, h)
	}

	//DLO: segments are concatenated in lexical order
	assert.HTTPRequest{
		Method:       "PUT",
		Path:         path + "/dlo",
		Header:       map[string]string{"X-Auth-Token": Token, "X-Object-Manifest": "foo/seg/"},
		ExpectStatus: http.StatusCreated,
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "GET",
		Path:         path + "/dlo",
		Header:       authHeader,
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.StringData("seg/1;seg/2;"),
	}.Check(t, h)

	//SLO: segments are concatenated in manifest order
	manifest := `[{"path":"foo/seg/2"},{"path":"foo/seg/1","range":"0-3"}]`
	assert.HTTPRequest{
		Method:       "PUT",
		Path:         path + "/slo?multipart-manifest=put",
		Header:       authHeader,
		Body:         assert.StringData(manifest),
		ExpectStatus: http.StatusCreated,
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "GET",
		Path:         path + "/slo",
		Header:       authHeader,
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.StringData("seg/2;seg/"),
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "GET",
		Path:         path + "/slo?multipart-manifest=get",
		Header:       authHeader,
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.StringData(manifest),
	}.Check(t, h)

	//SLO manifests referencing missing segments are rejected
	assert.HTTPRequest{
		Method:       "PUT",
		Path:         path + "/slo2?multipart-manifest=put",
		Header:       authHeader,
		Body:         assert.StringData(`[{"path":"foo/seg/3"}]`),
		ExpectStatus: http.StatusBadRequest,
	}.Check(t, h)

	assert.HTTPRequest{
		Method:       "DELETE",
		Path:         path + "/slo?multipart-manifest=delete",
		Header:       authHeader,
		ExpectStatus: http.StatusOK,
	}.Check(t, h)
	assert.DeepEqual(t, "remaining objects", s.ObjectNames("foo"), []string{"dlo"})
}

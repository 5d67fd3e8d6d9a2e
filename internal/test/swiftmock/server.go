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

// Package swiftmock provides an in-memory implementation of the parts of the
// Swift API that are used by this module, including swauth authentication
// and dynamic and static large objects. It is only intended for tests.
package swiftmock

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/logg"
)

// Credentials accepted by the auth endpoint.
const (
	User        = "test:tester"
	Key         = "testing"
	Token       = "AUTH_tk0123456789"
	AccountName = "AUTH_test"
)

// Server is an in-memory Swift server. Use New() to start one.
type Server struct {
	// FailObjectUploads, if not nil, is called for every object PUT. If it
	// returns true, the upload is answered with 503 and nothing is stored.
	FailObjectUploads func(containerName, objectName string) bool
	// FailObjectDeletes, if not nil, is called for every DELETE of an existing
	// object. If it returns true, the request is answered with 409 and the
	// object is kept.
	FailObjectDeletes func(containerName, objectName string) bool
	// ListingLimit is the maximum number of entries in one page of a container
	// listing. If 0, 10000 is used like in Swift.
	ListingLimit int

	mutex        sync.Mutex
	containers   map[string]*container
	requestCount int
	userAgent    string
	server       *httptest.Server
}

// New starts a new Server. The caller must call Close() when done.
func New() *Server {
	s := &Server{containers: make(map[string]*container)}
	s.server = httptest.NewServer(s.Handler())
	return s
}

// Handler returns the http.Handler of this server. This can be used with
// go-bits/assert.HTTPRequest without going through the network.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.countRequests)

	r.Methods("GET").Path("/auth/v1.0").HandlerFunc(s.authenticate)

	c := r.PathPrefix("/v1/{account}").Subrouter()
	c.Use(s.checkToken)
	//container URLs may carry a trailing slash
	for _, path := range []string{"/{container}", "/{container}/"} {
		c.Methods("PUT").Path(path).HandlerFunc(s.putContainer)
		c.Methods("DELETE").Path(path).HandlerFunc(s.deleteContainer)
		c.Methods("HEAD").Path(path).HandlerFunc(s.headContainer)
		c.Methods("POST").Path(path).HandlerFunc(s.postContainer)
		c.Methods("GET").Path(path).HandlerFunc(s.listContainer)
	}
	c.Methods("PUT").Path("/{container}/{object:.+}").HandlerFunc(s.putObject)
	c.Methods("GET", "HEAD").Path("/{container}/{object:.+}").HandlerFunc(s.getObject)
	c.Methods("POST").Path("/{container}/{object:.+}").HandlerFunc(s.postObject)
	c.Methods("DELETE").Path("/{container}/{object:.+}").HandlerFunc(s.deleteObject)
	return r
}

// Close shuts down the server.
func (s *Server) Close() {
	s.server.Close()
}

// AuthURL returns the URL that must be given to swift.NewSwauthAccount.
func (s *Server) AuthURL() string {
	return s.server.URL + "/"
}

// StorageURL returns the URL of the account.
func (s *Server) StorageURL() string {
	return s.server.URL + "/v1/" + AccountName + "/"
}

// RequestCount returns the number of requests received so far.
func (s *Server) RequestCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.requestCount
}

// LastUserAgent returns the User-Agent header of the most recent request.
func (s *Server) LastUserAgent() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.userAgent
}

// CreateContainer creates a container directly, without a request.
func (s *Server) CreateContainer(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.containers[name] == nil {
		s.containers[name] = newContainer()
	}
}

// ObjectNames returns the names of all objects in the given container in
// lexical order, or nil if the container does not exist.
func (s *Server) ObjectNames(containerName string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c := s.containers[containerName]
	if c == nil {
		return nil
	}
	return c.sortedNames("")
}

// ObjectContent returns the stored body of the given object, without
// resolving large object manifests.
func (s *Server) ObjectContent(containerName, objectName string) ([]byte, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	obj := s.findObject(containerName, objectName)
	if obj == nil {
		return nil, false
	}
	return obj.Content, true
}

// ObjectHeader returns the value of the given stored header on the given
// object, e.g. "X-Object-Manifest".
func (s *Server) ObjectHeader(containerName, objectName, key string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	obj := s.findObject(containerName, objectName)
	if obj == nil {
		return ""
	}
	return obj.Headers.Get(key)
}

func (s *Server) findObject(containerName, objectName string) *object {
	c := s.containers[containerName]
	if c == nil {
		return nil
	}
	return c.Objects[objectName]
}

////////////////////////////////////////////////////////////////////////////////
// middlewares and auth

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.requestCount++
		s.userAgent = r.Header.Get("User-Agent")
		s.mutex.Unlock()
		logg.Debug("swiftmock: %s %s", r.Method, r.URL.String())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["account"] != AccountName {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Auth-Token") != Token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Auth-User") != User || r.Header.Get("X-Auth-Key") != Key {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	w.Header().Set("X-Auth-Token", Token)
	w.Header().Set("X-Storage-Token", Token)
	w.Header().Set("X-Storage-Url", scheme+"://"+r.Host+"/v1/"+AccountName)
	w.WriteHeader(http.StatusOK)
}

////////////////////////////////////////////////////////////////////////////////
// data model

type container struct {
	Metadata http.Header
	Objects  map[string]*object
}

func newContainer() *container {
	return &container{
		Metadata: make(http.Header),
		Objects:  make(map[string]*object),
	}
}

func (c *container) sortedNames(prefix string) []string {
	var names []string
	for name := range c.Objects {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type object struct {
	Content []byte
	Etag    string
	// Headers contains X-Object-Meta-*, X-Object-Manifest and Content-Type.
	Headers http.Header
	// IsSLO is true if Content is a static large object manifest.
	IsSLO bool
}

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
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/respondwith"
)

const containerMetaPrefix = "X-Container-Meta-"

type objectListEntry struct {
	Name         string `json:"name"`
	SizeBytes    uint64 `json:"bytes"`
	Etag         string `json:"hash"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
}

func (s *Server) putContainer(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	name := mux.Vars(r)["container"]
	status := http.StatusAccepted
	c := s.containers[name]
	if c == nil {
		c = newContainer()
		s.containers[name] = c
		status = http.StatusCreated
	}
	updateMetadata(c.Metadata, r.Header, containerMetaPrefix)
	w.WriteHeader(status)
}

func (s *Server) deleteContainer(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	name := mux.Vars(r)["container"]
	c := s.containers[name]
	switch {
	case c == nil:
		http.Error(w, "container not found", http.StatusNotFound)
	case len(c.Objects) > 0:
		http.Error(w, "container not empty", http.StatusConflict)
	default:
		delete(s.containers, name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) headContainer(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := s.containers[mux.Vars(r)["container"]]
	if c == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for key, values := range c.Metadata {
		w.Header()[key] = values
	}
	w.Header().Set("X-Container-Object-Count", strconv.Itoa(len(c.Objects)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postContainer(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := s.containers[mux.Vars(r)["container"]]
	if c == nil {
		http.Error(w, "container not found", http.StatusNotFound)
		return
	}
	updateMetadata(c.Metadata, r.Header, containerMetaPrefix)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listContainer(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := s.containers[mux.Vars(r)["container"]]
	if c == nil {
		http.Error(w, "container not found", http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	limit := s.ListingLimit
	if limit <= 0 {
		limit = 10000
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < limit {
		limit = l
	}
	marker := query.Get("marker")

	entries := []objectListEntry{}
	for _, name := range c.sortedNames(query.Get("prefix")) {
		if name <= marker || len(entries) >= limit {
			continue
		}
		obj := c.Objects[name]
		entries = append(entries, objectListEntry{
			Name:         name,
			SizeBytes:    uint64(len(obj.Content)),
			Etag:         obj.Etag,
			ContentType:  obj.Headers.Get("Content-Type"),
			LastModified: "2024-01-01T00:00:00.000000",
		})
	}

	if query.Get("format") != "json" {
		names := make([]string, len(entries))
		for idx, e := range entries {
			names[idx] = e.Name + "\n"
		}
		if len(names) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Join(names, ""))) //nolint:errcheck
		return
	}
	respondwith.JSON(w, http.StatusOK, entries)
}

// Empty values remove the respective key, like in Swift.
func updateMetadata(target, source http.Header, prefix string) {
	for key, values := range source {
		if !strings.HasPrefix(strings.ToLower(key), strings.ToLower(prefix)) || len(values) == 0 {
			continue
		}
		canonicalKey := http.CanonicalHeaderKey(key)
		if values[0] == "" {
			target.Del(canonicalKey)
		} else {
			target.Set(canonicalKey, values[0])
		}
	}
}

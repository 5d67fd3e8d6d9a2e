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
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/respondwith"
)

const objectMetaPrefix = "X-Object-Meta-"

type sloManifestEntry struct {
	Path      string `json:"path"`
	Etag      string `json:"etag,omitempty"`
	SizeBytes uint64 `json:"size_bytes,omitempty"`
	Range     string `json:"range,omitempty"`
}

func md5Hex(buf []byte) string {
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	containerName, objectName := vars["container"], vars["object"]

	//read the body before locking, since large uploads happen in parallel
	body, err := io.ReadAll(r.Body)
	if respondwith.ErrorText(w, err) {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := s.containers[containerName]
	if c == nil {
		http.Error(w, "container not found", http.StatusNotFound)
		return
	}
	if s.FailObjectUploads != nil && s.FailObjectUploads(containerName, objectName) {
		http.Error(w, "simulated upload failure", http.StatusServiceUnavailable)
		return
	}

	obj := &object{
		Content: body,
		Etag:    md5Hex(body),
		Headers: make(http.Header),
	}
	updateMetadata(obj.Headers, r.Header, objectMetaPrefix)
	if ct := r.Header.Get("Content-Type"); ct != "" {
		obj.Headers.Set("Content-Type", ct)
	}
	if pointer := r.Header.Get("X-Object-Manifest"); pointer != "" {
		obj.Headers.Set("X-Object-Manifest", pointer)
	}

	if r.URL.Query().Get("multipart-manifest") == "put" {
		var entries []sloManifestEntry
		err := json.Unmarshal(body, &entries)
		if err != nil {
			http.Error(w, "malformed manifest: "+err.Error(), http.StatusBadRequest)
			return
		}
		etags := ""
		for _, entry := range entries {
			segment, err := s.resolvePath(entry.Path)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if entry.Etag != "" && entry.Etag != segment.Etag {
				http.Error(w, "Etag mismatch for "+entry.Path, http.StatusBadRequest)
				return
			}
			if entry.SizeBytes != 0 && entry.SizeBytes != uint64(len(segment.Content)) {
				http.Error(w, "size mismatch for "+entry.Path, http.StatusBadRequest)
				return
			}
			etags += segment.Etag
		}
		obj.IsSLO = true
		obj.Etag = md5Hex([]byte(etags))
	}

	c.Objects[objectName] = obj
	w.Header().Set("Etag", obj.Etag)
	w.WriteHeader(http.StatusCreated)
}

// resolvePath finds an object referenced as "<container>/<object>" in a
// manifest. The caller must hold the mutex.
func (s *Server) resolvePath(path string) (*object, error) {
	containerName, objectName, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok {
		return nil, fmt.Errorf("invalid segment path: %q", path)
	}
	obj := s.findObject(containerName, objectName)
	if obj == nil {
		return nil, fmt.Errorf("segment not found: %q", path)
	}
	return obj, nil
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	obj := s.findObject(vars["container"], vars["object"])
	if obj == nil {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}

	content := obj.Content
	if r.URL.Query().Get("multipart-manifest") != "get" {
		var err error
		content, err = s.resolveContent(obj)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}

	for key, values := range obj.Headers {
		w.Header()[key] = values
	}
	if obj.IsSLO {
		w.Header().Set("X-Static-Large-Object", "True")
	}
	w.Header().Set("Etag", obj.Etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(content) //nolint:errcheck
	}
}

// resolveContent returns the content that Swift returns for a plain GET on
// the given object. The caller must hold the mutex.
func (s *Server) resolveContent(obj *object) ([]byte, error) {
	if pointer := obj.Headers.Get("X-Object-Manifest"); pointer != "" {
		return s.resolveDLO(pointer)
	}
	if !obj.IsSLO {
		return obj.Content, nil
	}

	var entries []sloManifestEntry
	err := json.Unmarshal(obj.Content, &entries)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, entry := range entries {
		segment, err := s.resolvePath(entry.Path)
		if err != nil {
			return nil, err
		}
		content, err := applyRange(segment.Content, entry.Range)
		if err != nil {
			return nil, err
		}
		buf.Write(content)
	}
	return buf.Bytes(), nil
}

func (s *Server) resolveDLO(pointer string) ([]byte, error) {
	escapedContainer, escapedPrefix, _ := strings.Cut(pointer, "/")
	containerName, err := url.PathUnescape(escapedContainer)
	if err != nil {
		return nil, err
	}
	prefix, err := url.PathUnescape(escapedPrefix)
	if err != nil {
		return nil, err
	}

	c := s.containers[containerName]
	if c == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	for _, name := range c.sortedNames(prefix) {
		segment := c.Objects[name]
		//manifests are not concatenated into other manifests
		if segment.Headers.Get("X-Object-Manifest") != "" || segment.IsSLO {
			continue
		}
		buf.Write(segment.Content)
	}
	return buf.Bytes(), nil
}

// applyRange supports the "first-last" form of SLO segment ranges.
func applyRange(content []byte, rangeSpec string) ([]byte, error) {
	if rangeSpec == "" {
		return content, nil
	}
	firstStr, lastStr, ok := strings.Cut(rangeSpec, "-")
	first, err1 := strconv.Atoi(firstStr)
	last, err2 := strconv.Atoi(lastStr)
	if !ok || err1 != nil || err2 != nil || first > last || last >= len(content) {
		return nil, fmt.Errorf("unsupported range: %q", rangeSpec)
	}
	return content[first : last+1], nil
}

func (s *Server) postObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	obj := s.findObject(vars["container"], vars["object"])
	if obj == nil {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}

	//POST replaces all existing metadata
	for key := range obj.Headers {
		if strings.HasPrefix(key, objectMetaPrefix) {
			delete(obj.Headers, key)
		}
	}
	updateMetadata(obj.Headers, r.Header, objectMetaPrefix)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := s.containers[vars["container"]]
	obj := s.findObject(vars["container"], vars["object"])
	if obj == nil {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}
	if s.FailObjectDeletes != nil && s.FailObjectDeletes(vars["container"], vars["object"]) {
		http.Error(w, "simulated delete conflict", http.StatusConflict)
		return
	}

	if !obj.IsSLO || r.URL.Query().Get("multipart-manifest") != "delete" {
		delete(c.Objects, vars["object"])
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var entries []sloManifestEntry
	err := json.Unmarshal(obj.Content, &entries)
	if respondwith.ErrorText(w, err) {
		return
	}
	deleted := 0
	for _, entry := range entries {
		containerName, objectName, _ := strings.Cut(strings.TrimPrefix(entry.Path, "/"), "/")
		if s.findObject(containerName, objectName) != nil {
			delete(s.containers[containerName].Objects, objectName)
			deleted++
		}
	}
	delete(c.Objects, vars["object"])
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"Number Deleted":   deleted + 1,
		"Number Not Found": len(entries) - deleted,
		"Response Status":  "200 OK",
		"Errors":           []any{},
	})
}

package drivefeed

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDriveFile is one file served by the fake Drive API.
type fakeDriveFile struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Content      string            // body for alt=media downloads
	Exports      map[string]string // body per export MIME type

	FailTimes int // serve this many errors before succeeding
	FailCode  int // status for those errors (default 500)
}

// fakeObject is one object stored by the fake GCS API.
type fakeObject struct {
	Bucket      string
	Name        string
	Data        []byte
	ContentType string
	Created     time.Time
}

// fakeGCP serves just enough of the Drive v3 and GCS JSON APIs for the
// client under test: files.list with pagination, files.export, files.get
// alt=media, object upload and object listing.
type fakeGCP struct {
	mu        sync.Mutex
	files     []*fakeDriveFile
	failures  map[string]int // remaining failures per file ID
	queries   []string       // captured files.list q parameters
	pageSplit int            // server-side page size, 0 = single page
	objects   map[string]*fakeObject

	srv *httptest.Server
}

func newFakeGCP(t *testing.T) *fakeGCP {
	f := &fakeGCP{
		failures: make(map[string]int),
		objects:  make(map[string]*fakeObject),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", f.handleList)
	mux.HandleFunc("GET /files/{id}/export", f.handleExport)
	mux.HandleFunc("GET /files/{id}", f.handleDownload)
	mux.HandleFunc("POST /upload/storage/v1/b/{bucket}/o", f.handleUpload)
	mux.HandleFunc("GET /storage/v1/b/{bucket}/o", f.handleObjects)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGCP) URL() string { return f.srv.URL }

func (f *fakeGCP) addFile(file *fakeDriveFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
	if file.FailTimes > 0 {
		f.failures[file.ID] = file.FailTimes
	}
}

func (f *fakeGCP) capturedQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fakeGCP) object(bucket, name string) (*fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[bucket+"/"+name]
	return o, ok
}

func (f *fakeGCP) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeGCP) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, r.URL.Query().Get("q"))

	start := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		start, _ = strconv.Atoi(tok)
	}

	end := len(f.files)
	next := ""
	if f.pageSplit > 0 && start+f.pageSplit < len(f.files) {
		end = start + f.pageSplit
		next = strconv.Itoa(end)
	}

	type fileMeta struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		MimeType     string `json:"mimeType"`
		ModifiedTime string `json:"modifiedTime"`
	}
	resp := struct {
		Files         []fileMeta `json:"files"`
		NextPageToken string     `json:"nextPageToken,omitempty"`
	}{NextPageToken: next}

	for _, df := range f.files[start:end] {
		resp.Files = append(resp.Files, fileMeta{
			ID:           df.ID,
			Name:         df.Name,
			MimeType:     df.MimeType,
			ModifiedTime: df.ModifiedTime,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// failOnce burns one queued failure for the file, returning true if the
// request was answered with an error.
func (f *fakeGCP) failOnce(w http.ResponseWriter, file *fakeDriveFile) bool {
	if f.failures[file.ID] <= 0 {
		return false
	}
	f.failures[file.ID]--
	code := file.FailCode
	if code == 0 {
		code = http.StatusInternalServerError
	}
	writeAPIError(w, code, "induced failure")
	return true
}

func (f *fakeGCP) findFile(id string) *fakeDriveFile {
	for _, df := range f.files {
		if df.ID == id {
			return df
		}
	}
	return nil
}

func (f *fakeGCP) handleExport(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file := f.findFile(r.PathValue("id"))
	if file == nil {
		writeAPIError(w, http.StatusNotFound, "file not found")
		return
	}
	if f.failOnce(w, file) {
		return
	}

	mimeType := r.URL.Query().Get("mimeType")
	body, ok := file.Exports[mimeType]
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "export not supported")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	io.WriteString(w, body)
}

func (f *fakeGCP) handleDownload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file := f.findFile(r.PathValue("id"))
	if file == nil {
		writeAPIError(w, http.StatusNotFound, "file not found")
		return
	}
	if f.failOnce(w, file) {
		return
	}

	if r.URL.Query().Get("alt") != "media" {
		writeJSON(w, http.StatusOK, map[string]string{
			"id": file.ID, "name": file.Name, "mimeType": file.MimeType,
		})
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	io.WriteString(w, file.Content)
}

func (f *fakeGCP) handleUpload(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	name := r.URL.Query().Get("name")

	var data []byte
	var contentType string

	ct := r.Header.Get("Content-Type")
	mediaType, params, _ := mime.ParseMediaType(ct)
	defer r.Body.Close()

	if mediaType == "multipart/related" {
		// First part is object metadata, second is the payload.
		mr := multipart.NewReader(r.Body, params["boundary"])
		metaPart, err := mr.NextPart()
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "bad metadata part")
			return
		}
		var meta struct {
			Name        string `json:"name"`
			ContentType string `json:"contentType"`
		}
		metaBytes, _ := io.ReadAll(metaPart)
		_ = json.Unmarshal(metaBytes, &meta)
		if name == "" {
			name = meta.Name
		}
		contentType = meta.ContentType

		dataPart, err := mr.NextPart()
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "bad data part")
			return
		}
		if contentType == "" {
			contentType = dataPart.Header.Get("Content-Type")
		}
		data, _ = io.ReadAll(dataPart)
	} else {
		data, _ = io.ReadAll(r.Body)
		contentType = ct
	}

	obj := &fakeObject{
		Bucket:      bucket,
		Name:        name,
		Data:        data,
		ContentType: contentType,
		Created:     time.Now().UTC(),
	}

	f.mu.Lock()
	f.objects[bucket+"/"+name] = obj
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, objectMeta(obj))
}

func (f *fakeGCP) handleObjects(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := r.PathValue("bucket")
	prefix := r.URL.Query().Get("prefix")

	items := []map[string]any{}
	for _, o := range f.objects {
		if o.Bucket != bucket {
			continue
		}
		if prefix != "" && !strings.HasPrefix(o.Name, prefix) {
			continue
		}
		items = append(items, objectMeta(o))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":  "storage#objects",
		"items": items,
	})
}

func objectMeta(o *fakeObject) map[string]any {
	ts := o.Created.Format(time.RFC3339)
	return map[string]any{
		"kind":        "storage#object",
		"name":        o.Name,
		"bucket":      o.Bucket,
		"size":        strconv.Itoa(len(o.Data)),
		"contentType": o.ContentType,
		"timeCreated": ts,
		"updated":     ts,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error": {"code": %d, "message": %q}}`, status, msg)
}

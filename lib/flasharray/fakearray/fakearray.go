// Package fakearray is an in-memory emulation of the array REST API subset
// used by the flasharray client. It is meant for tests.
package fakearray

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

// Session token handed out by /login.
const SessionToken = "fake-session-token"

type failure struct {
	status  int
	message string
}

// Array holds the emulated array state.
type Array struct {
	mu sync.Mutex

	apiVersion string
	apiToken   string

	// ExportPathPrefix is prepended to export names when reporting export paths.
	ExportPathPrefix string

	fileSystems map[string]*fileSystem
	policies    map[string]map[string]*policy // kind -> name -> policy
	members     map[string]map[string]string  // kind -> directory -> policy
	exports     map[string]export             // directory -> export

	failures map[string]failure
	calls    map[string]int
	nextID   int
}

type fileSystem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Created   int64  `json:"created"`
	Destroyed bool   `json:"destroyed"`
}

type policy struct {
	Name  string
	Rules []json.RawMessage
}

type export struct {
	Name   string
	Policy string
}

// New creates an empty array accepting apiToken on /login.
func New(apiVersion, apiToken string) *Array {
	return &Array{
		apiVersion:  apiVersion,
		apiToken:    apiToken,
		fileSystems: make(map[string]*fileSystem),
		policies:    make(map[string]map[string]*policy),
		members:     make(map[string]map[string]string),
		exports:     make(map[string]export),
		failures:    make(map[string]failure),
		calls:       make(map[string]int),
	}
}

// Fail makes every subsequent call to method+path return status with message.
func (a *Array) Fail(method, path string, status int, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[method+" "+path] = failure{status: status, message: message}
}

// Calls returns how many times method+path was invoked (including failures).
func (a *Array) Calls(method, path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method+" "+path]
}

// HasFileSystem reports whether a live (not destroyed) file system exists.
func (a *Array) HasFileSystem(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.fileSystems[name]
	return ok && !fs.Destroyed
}

// Member returns the policy of the given kind attached to directory.
func (a *Array) Member(kind, directory string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.members[kind][directory]
	return p, ok
}

// Rules returns the raw JSON rules stored on a policy.
func (a *Array) Rules(kind, name string) []json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.policies[kind][name]; ok {
		return append([]json.RawMessage(nil), p.Rules...)
	}
	return nil
}

// Handler returns the HTTP handler serving the emulated API.
func (a *Array) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware("fakearray", otelchi.WithChiRoutes(r)))
	r.Route("/api/"+a.apiVersion, func(r chi.Router) {
		r.Use(a.track)
		r.Post("/login", a.login)
		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)
			r.Get("/file-systems", a.getFileSystems)
			r.Post("/file-systems", a.createFileSystem)
			r.Patch("/file-systems", a.patchFileSystem)
			r.Delete("/file-systems", a.deleteFileSystem)
			r.Get("/directories", a.getDirectories)
			r.Post("/policies/{kind}", a.createPolicy)
			r.Post("/policies/nfs/client-rules", a.addRules("nfs"))
			r.Post("/policies/quota/rules", a.addRules("quota"))
			r.Post("/policies/snapshot/rules", a.addRules("snapshot"))
			r.Post("/directories/policies/{kind}", a.addMember)
			r.Get("/directory-exports", a.getExports)
			r.Post("/directory-exports", a.createExport)
		})
	})
	return r
}

func (a *Array) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/"+a.apiVersion)
		key := r.Method + " " + path

		a.mu.Lock()
		a.calls[key]++
		f, failing := a.failures[key]
		a.mu.Unlock()

		if failing {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Array) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-auth-token") != SessionToken {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Array) login(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("api-token") != a.apiToken {
		writeError(w, http.StatusUnauthorized, "invalid api token")
		return
	}
	w.Header().Set("x-auth-token", SessionToken)
	writeItems(w, []map[string]string{{"username": "pureuser"}})
}

func (a *Array) getFileSystems(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	items := []fileSystem{}
	if fs, ok := a.fileSystems[r.URL.Query().Get("names")]; ok {
		items = append(items, *fs)
	}
	writeItems(w, items)
}

func (a *Array) createFileSystem(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("names")
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.fileSystems[name]; ok {
		writeContextError(w, http.StatusBadRequest, name, "File system already exists.")
		return
	}
	a.nextID++
	fs := &fileSystem{
		ID:      fmt.Sprintf("fs-%04d", a.nextID),
		Name:    name,
		Created: time.Now().UnixMilli(),
	}
	a.fileSystems[name] = fs
	writeItems(w, []fileSystem{*fs})
}

func (a *Array) patchFileSystem(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("names")
	var body struct {
		Destroyed *bool `json:"destroyed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.fileSystems[name]
	if !ok {
		writeContextError(w, http.StatusBadRequest, name, "File system does not exist.")
		return
	}
	if body.Destroyed != nil {
		fs.Destroyed = *body.Destroyed
	}
	writeItems(w, []fileSystem{*fs})
}

func (a *Array) deleteFileSystem(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("names")
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.fileSystems[name]
	if !ok {
		writeContextError(w, http.StatusBadRequest, name, "File system does not exist.")
		return
	}
	if !fs.Destroyed {
		writeContextError(w, http.StatusBadRequest, name, "File system must be destroyed before it can be eradicated.")
		return
	}
	delete(a.fileSystems, name)
	root := name + ":root"
	delete(a.exports, root)
	for _, m := range a.members {
		delete(m, root)
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Array) getDirectories(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file_system_names")
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.fileSystems[name]
	if !ok {
		writeContextError(w, http.StatusBadRequest, name, "File system does not exist.")
		return
	}
	writeItems(w, []map[string]any{{
		"name":           fs.Name + ":root",
		"directory_name": "root",
		"path":           "/",
		"file_system":    map[string]string{"name": fs.Name, "id": fs.ID},
	}})
}

func (a *Array) createPolicy(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	name := r.URL.Query().Get("names")
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.policies[kind] == nil {
		a.policies[kind] = make(map[string]*policy)
	}
	if _, ok := a.policies[kind][name]; ok {
		writeContextError(w, http.StatusBadRequest, name, "Policy already exists.")
		return
	}
	a.policies[kind][name] = &policy{Name: name}
	writeItems(w, []map[string]string{{"name": name}})
}

func (a *Array) addRules(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("policy_names")
		var body struct {
			Rules []json.RawMessage `json:"rules"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		p, ok := a.policies[kind][name]
		if !ok {
			writeContextError(w, http.StatusBadRequest, name, "Policy does not exist.")
			return
		}
		p.Rules = append(p.Rules, body.Rules...)
		writeItems(w, body.Rules)
	}
}

func (a *Array) addMember(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	dir := r.URL.Query().Get("member_names")
	name := r.URL.Query().Get("policy_names")
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.policies[kind][name]; !ok {
		writeContextError(w, http.StatusBadRequest, name, "Policy does not exist.")
		return
	}
	if !a.directoryExists(dir) {
		writeContextError(w, http.StatusBadRequest, dir, "Directory does not exist.")
		return
	}
	if a.members[kind] == nil {
		a.members[kind] = make(map[string]string)
	}
	a.members[kind][dir] = name
	writeItems(w, []map[string]any{{"member": map[string]string{"name": dir}, "policy": map[string]string{"name": name}}})
}

func (a *Array) getExports(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("directory_names")
	a.mu.Lock()
	defer a.mu.Unlock()
	items := []map[string]any{}
	if e, ok := a.exports[dir]; ok {
		items = append(items, map[string]any{
			"export_name": e.Name,
			"path":        a.ExportPathPrefix + "/" + e.Name,
			"enabled":     true,
			"policy_type": "nfs",
			"directory":   map[string]string{"name": dir},
			"policy":      map[string]string{"name": e.Policy},
		})
	}
	writeItems(w, items)
}

func (a *Array) createExport(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("directory_names")
	name := r.URL.Query().Get("policy_names")
	var body struct {
		ExportName string `json:"export_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.policies["nfs"][name]; !ok {
		writeContextError(w, http.StatusBadRequest, name, "Policy does not exist.")
		return
	}
	if !a.directoryExists(dir) {
		writeContextError(w, http.StatusBadRequest, dir, "Directory does not exist.")
		return
	}
	if _, ok := a.exports[dir]; ok {
		writeContextError(w, http.StatusBadRequest, body.ExportName, "Export already exists.")
		return
	}
	a.exports[dir] = export{Name: body.ExportName, Policy: name}
	writeItems(w, []map[string]string{{"export_name": body.ExportName}})
}

// directoryExists must be called with a.mu held.
func (a *Array) directoryExists(dir string) bool {
	fsName, ok := strings.CutSuffix(dir, ":root")
	if !ok {
		return false
	}
	fs, ok := a.fileSystems[fsName]
	return ok && !fs.Destroyed
}

func writeItems(w http.ResponseWriter, items any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeContextError(w, status, "", message)
}

func writeContextError(w http.ResponseWriter, status int, context, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"context": context, "message": message}},
	})
}

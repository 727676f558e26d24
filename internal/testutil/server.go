package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/pkg/okr"
)

// NewServer serves api over HTTP the way the DRF backend does, so the real
// resource.HTTPClient can be exercised end to end:
//
//	GET    /projects/{id}/?tipo=mision|proyecto
//	GET    /{resource}/?{key}={parent}   → {"results": [...], "next": null}
//	POST   /{resource}/                  → 201 + entity
//	PUT    /{resource}/{id}/             → entity
//	DELETE /{resource}/{id}/             → 204
//
// The server is closed when the test ends.
func NewServer(t *testing.T, api *FakeAPI) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Handler(api))
	t.Cleanup(srv.Close)
	return srv
}

// Handler returns the routes served by NewServer.
func Handler(api *FakeAPI) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		name := parts[0]
		var id okr.ID
		if len(parts) > 1 {
			id = okr.ID(parts[1])
		}

		switch name {
		case resource.ResourceProjects:
			serveRoot(w, r, api, id)
		case resource.ResourceEpics:
			serveCollection(w, r, api.Epics(), id)
		case resource.ResourceObjectives:
			serveCollection(w, r, api.Objectives(), id)
		case resource.ResourceKeyResults:
			serveCollection(w, r, api.KeyResults(), id)
		case resource.ResourceActivities:
			serveCollection(w, r, api.Activities(), id)
		case resource.ResourceTasks:
			serveCollection(w, r, api.Tasks(), id)
		default:
			http.NotFound(w, r)
		}
	})
}

func serveRoot(w http.ResponseWriter, r *http.Request, api *FakeAPI, id okr.ID) {
	if r.Method != http.MethodGet || id.IsZero() {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kind, err := okr.ParseRootKind(r.URL.Query().Get("tipo"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	detail, err := api.Root(r.Context(), id, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func serveCollection[T okr.Node](w http.ResponseWriter, r *http.Request, res resource.Resource[T], id okr.ID) {
	switch {
	case r.Method == http.MethodGet && id.IsZero():
		var parent resource.Parent
		for k, v := range r.URL.Query() {
			parent = resource.Parent{Key: k, ID: okr.ID(v[0])}
			break
		}
		items, err := res.List(r.Context(), parent)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": items, "next": nil})

	case r.Method == http.MethodPost && id.IsZero():
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		created, err := res.Create(r.Context(), body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case r.Method == http.MethodPut && !id.IsZero():
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		updated, err := res.Update(r.Context(), id, body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case r.Method == http.MethodDelete && !id.IsZero():
		if err := res.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// writeError maps injected StatusErrors to their code; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var statusErr *resource.StatusError
	if errors.As(err, &statusErr) {
		code = statusErr.StatusCode
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

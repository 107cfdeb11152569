// Package fakeportal runs an HTTP portal double for tests: it serves schema
// profiles and stored objects from in-memory maps, with the same surface the
// real portal exposes.
package fakeportal

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
)

type server struct {
	router  *mux.Router
	schemas map[string]map[string]any
	objects map[string]map[string]any
	hits    *int
}

// New starts an httptest server backed by the given schemas (by type name)
// and objects (by path, e.g. "/Donor/XY_DONOR_ABCD"). The returned counter
// tracks object lookups so tests can assert how many external requests the
// resolver issued. Callers own the server and must Close it.
func New(schemas map[string]map[string]any, objects map[string]map[string]any) (*httptest.Server, *int) {
	hits := 0
	s := &server{
		router:  mux.NewRouter(),
		schemas: schemas,
		objects: objects,
		hits:    &hits,
	}
	s.setupRoutes()
	return httptest.NewServer(s.router), &hits
}

func (s *server) setupRoutes() {
	s.router.HandleFunc("/profiles/", s.handleGetProfiles()).Methods("GET")
	s.router.HandleFunc("/profiles/{name}.json", s.handleGetProfile()).Methods("GET")
	s.router.PathPrefix("/").HandlerFunc(s.handleGetObject()).Methods("GET")
	s.router.Use(logMiddleware)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := negroni.NewResponseWriter(w)
		next.ServeHTTP(ww, r)
		log.Println(r.Method, r.RequestURI, r.Proto, "->", ww.Status(), http.StatusText(ww.Status()))
	})
}

func (s *server) handleGetProfiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.schemas)
	}
}

func (s *server) handleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		doc, in := s.schemas[name]
		if !in {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *server) handleGetObject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*s.hits++
		body, in := s.objects[r.URL.Path]
		if !in {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("encode response:", err)
	}
}

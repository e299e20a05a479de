// Package server serves the APIs of a Definition over HTTP.
//
// Routes are derived from the entrypoint tree: every entrypoint adds a
// collection path and, when its target is identified by a field, an item path
// carrying the identifying parameter. Nested entrypoints hang off the item
// path of their parent.
package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/executor"
	"github.com/gauditech/gaudi-sub004/internal/strutil"
)

// RequestIDHeader carries the id of a request in both directions.
const RequestIDHeader = "X-Request-Id"

// Route is one served endpoint.
type Route struct {
	Method string
	Path   string
	Kind   string
}

// Server is an http.Handler for one Definition and database.
type Server struct {
	x      *executor.Executor
	db     *sql.DB
	router chi.Router
	routes []Route
}

// New builds the router of every API in the executor's Definition.
func New(x *executor.Executor, db *sql.DB) *Server {
	s := &Server{x: x, db: db}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	def := x.Definition()
	for _, api := range def.APIs {
		for _, ep := range api.Entrypoints {
			s.mountEntrypoint(r, api.Path, ep)
		}
	}
	if def.Authenticator != nil {
		r.Route(AuthPath, func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.Post("/register", s.register)
		})
		for _, name := range []string{"login", "logout", "register"} {
			s.routes = append(s.routes, Route{Method: http.MethodPost, Path: AuthPath + "/" + name, Kind: "auth"})
		}
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Message: "route not found"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Message: "method not allowed"}})
	})

	sort.SliceStable(s.routes, func(i, j int) bool { return s.routes[i].Path < s.routes[j].Path })
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Routes returns the served endpoints ordered by path.
func (s *Server) Routes() []Route {
	return s.routes
}

func (s *Server) mountEntrypoint(r chi.Router, base string, ep *definition.EntrypointDef) {
	collection := base + "/" + strutil.PathSegment(ep.Name)
	item := collection
	if id := ep.Target.IdentifyWith; id != nil {
		item += "/{" + id.ParamName + "}"
	}

	for _, e := range ep.Endpoints {
		path := endpointPath(e, collection, item)
		r.Method(e.Method, path, s.endpoint(executor.PrepareEndpoint(e)))
		s.routes = append(s.routes, Route{Method: e.Method, Path: path, Kind: e.Kind})
	}
	for _, sub := range ep.Entrypoints {
		s.mountEntrypoint(r, item, sub)
	}
}

// endpointPath places e on the collection or the item path of its
// entrypoint.
func endpointPath(e *definition.EndpointDef, collection, item string) string {
	switch e.Kind {
	case definition.EndpointList, definition.EndpointCreate:
		return collection
	case definition.EndpointCustomMany:
		return collection + "/" + e.Path
	case definition.EndpointCustomOne:
		return item + "/" + e.Path
	default:
		return item
	}
}

// requestID tags every request with a uuid, reusing a well-formed id sent by
// the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

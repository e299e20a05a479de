package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/executor"
	"github.com/gauditech/gaudi-sub004/internal/runtime"
)

// AuthPath is where the authenticator routes are mounted.
const AuthPath = "/auth"

// maxBodyBytes bounds a decoded request body.
const maxBodyBytes = 1 << 20

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// endpoint serves one endpoint.
func (s *Server) endpoint(ep *executor.Endpoint) http.HandlerFunc {
	var names []string
	for _, p := range ep.Def.Parents {
		if p.IdentifyWith != nil {
			names = append(names, p.IdentifyWith.ParamName)
		}
	}
	if id := ep.Def.Target.IdentifyWith; id != nil {
		names = append(names, id.ParamName)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		req := &executor.Request{Params: map[string]string{}, Token: bearerToken(r)}
		for _, name := range names {
			if v := chi.URLParam(r, name); v != "" {
				req.Params[name] = v
			}
		}
		if ep.Def.Fieldset != nil {
			input, err := decodeBody(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			req.Input = input
		}
		if ep.Def.Pageable {
			var err error
			if req.Page, err = queryInt(r, "page"); err != nil {
				writeError(w, r, err)
				return
			}
			if req.PageSize, err = queryInt(r, "pageSize"); err != nil {
				writeError(w, r, err)
				return
			}
		}

		ctx := runtime.WithValues(r.Context(), map[string]any{
			"method":    r.Method,
			"path":      r.URL.Path,
			"requestId": requestIDFrom(r.Context()),
		})
		resp, err := s.x.RunEndpoint(ctx, s.db, ep, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, resp.Status, resp.Body)
	}
}

// -----------------------------------------------------------------------------
// Authenticator routes
// -----------------------------------------------------------------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&c); err != nil {
		writeError(w, r, alerr.Wrap(alerr.ErrValidation, err, "request body is not valid JSON"))
		return
	}
	var token string
	err := executor.InTx(r.Context(), s.db, func(tx *sql.Tx) error {
		var err error
		token, err = s.x.Login(r.Context(), tx, c.Username, c.Password)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, r, alerr.New(alerr.ErrUnauthorized, "missing bearer token"))
		return
	}
	err := executor.InTx(r.Context(), s.db, func(tx *sql.Tx) error {
		return s.x.Logout(r.Context(), tx, token)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	input, err := decodeBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var user map[string]any
	err = executor.InTx(r.Context(), s.db, func(tx *sql.Tx) error {
		rec, err := s.x.Register(r.Context(), tx, input)
		user = rec
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// -----------------------------------------------------------------------------
// Request decoding
// -----------------------------------------------------------------------------

// bearerToken reads the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// decodeBody reads a JSON object body. An empty body is an empty object.
func decodeBody(r *http.Request) (map[string]any, error) {
	var v any
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&v)
	switch {
	case errors.Is(err, io.EOF):
		return map[string]any{}, nil
	case err != nil:
		return nil, alerr.Wrap(alerr.ErrValidation, err, "request body is not valid JSON")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, alerr.New(alerr.ErrValidation, "request body must be a JSON object")
	}
	return obj, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		var issues alerr.ValidationErrors
		issues.Add([]string{name}, executor.IssueType, "must be an integer")
		return 0, issues.Err()
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string             `json:"code,omitempty"`
	Message string             `json:"message"`
	Issues  []alerr.FieldIssue `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// writeError renders err by its class. Server errors are logged and reach
// the client as an opaque message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := alerr.HTTPStatus(err)
	detail := errorDetail{Message: alerr.PublicMessage(err), Issues: alerr.Issues(err)}
	if alerr.Classify(err) == alerr.ClassServer {
		level := slog.LevelError
		if alerr.IsCanceled(err) {
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
	} else {
		detail.Code = string(alerr.GetErrorCode(err))
	}
	writeJSON(w, status, errorBody{Error: detail})
}

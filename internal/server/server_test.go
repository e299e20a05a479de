package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/gauditech/gaudi-sub004/internal/dialect"
	"github.com/gauditech/gaudi-sub004/internal/executor"
	"github.com/gauditech/gaudi-sub004/internal/runtime"
	"github.com/gauditech/gaudi-sub004/internal/server"
	"github.com/gauditech/gaudi-sub004/internal/testutil"
)

func newServer(t *testing.T, src string) *server.Server {
	t.Helper()
	def, db := testutil.SetupDatabase(t, src)
	for _, stmt := range []string{
		`INSERT INTO "org" ("name", "slug") VALUES ('Acme', 'acme'), ('Empty', 'empty')`,
		`INSERT INTO "repo" ("name", "is_public", "stars", "org_id") VALUES
			('api', 1, 5, 1), ('web', 0, 9, 1), ('cli', 1, 1, 1)`,
	} {
		testutil.ExecSQL(t, db, stmt)
	}
	return server.New(executor.New(def, dialect.SQLite(), runtime.NewHookRunner(def)), db)
}

type result struct {
	status int
	header http.Header
	body   map[string]any
	list   []any
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) result {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := result{status: rec.Code, header: rec.Header()}
	if rec.Body.Len() > 0 {
		var v any
		if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
			t.Fatalf("%s %s: response is not JSON: %q", method, path, rec.Body.String())
		}
		out.body, _ = v.(map[string]any)
		out.list, _ = v.([]any)
	}
	return out
}

func errorCode(r result) string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// -----------------------------------------------------------------------------
// Routing
// -----------------------------------------------------------------------------

func TestRoutes(t *testing.T) {
	s := newServer(t, testutil.OrgBlueprint)

	var got []string
	for _, r := range s.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	want := []string{
		"GET /api/org",
		"POST /api/org",
		"GET /api/org/{org_slug}",
		"PATCH /api/org/{org_slug}",
		"DELETE /api/org/{org_slug}",
		"GET /api/org/{org_slug}/repos",
		"POST /api/org/{org_slug}/repos",
		"GET /api/org/{org_slug}/repos/{repo_id}",
		"PATCH /api/org/{org_slug}/repos/{repo_id}",
		"DELETE /api/org/{org_slug}/repos/{repo_id}",
		"POST /api/org/{org_slug}/repos/{repo_id}/star",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestServeEndpoints(t *testing.T) {
	s := newServer(t, testutil.OrgBlueprint)

	t.Run("paged_list", func(t *testing.T) {
		r := do(t, s, "GET", "/api/org?page=2&pageSize=1", nil)
		if r.status != http.StatusOK || r.body["totalCount"] != float64(2) || r.body["page"] != float64(2) {
			t.Errorf("list = %d %v", r.status, r.body)
		}
		if r.header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.header.Get("Content-Type"))
		}
	})

	t.Run("bad_page", func(t *testing.T) {
		r := do(t, s, "GET", "/api/org?page=two", nil)
		if r.status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", r.status)
		}
	})

	t.Run("nested_get", func(t *testing.T) {
		r := do(t, s, "GET", "/api/org/acme/repos/2", nil)
		if r.status != http.StatusOK || r.body["full_name"] != "acme/web" {
			t.Errorf("get = %d %v", r.status, r.body)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		r := do(t, s, "GET", "/api/org/empty/repos/2", nil)
		if r.status != http.StatusNotFound || errorCode(r) == "" {
			t.Errorf("get = %d %v", r.status, r.body)
		}
	})

	t.Run("create", func(t *testing.T) {
		r := do(t, s, "POST", "/api/org/acme/repos", map[string]any{"name": "docs", "is_public": true})
		if r.status != http.StatusCreated || r.body["full_name"] != "acme/docs" || r.body["is_public"] != true {
			t.Errorf("create = %d %v", r.status, r.body)
		}
	})

	t.Run("validation", func(t *testing.T) {
		r := do(t, s, "POST", "/api/org", map[string]any{"name": "A"})
		if r.status != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", r.status)
		}
		e := r.body["error"].(map[string]any)
		issues, _ := e["issues"].([]any)
		if len(issues) != 2 {
			t.Errorf("issues = %v, want minLength and required", issues)
		}
	})

	t.Run("malformed_body", func(t *testing.T) {
		for _, body := range []string{"{", "[1]"} {
			r := do(t, s, "POST", "/api/org", body)
			if r.status != http.StatusBadRequest {
				t.Errorf("body %q: status = %d, want 400", body, r.status)
			}
		}
	})

	t.Run("custom", func(t *testing.T) {
		r := do(t, s, "POST", "/api/org/acme/repos/3/star", nil)
		if r.status != http.StatusOK || r.body["stars"] != float64(2) {
			t.Errorf("star = %d %v", r.status, r.body)
		}
	})

	t.Run("delete", func(t *testing.T) {
		r := do(t, s, "DELETE", "/api/org/acme/repos/3", nil)
		if r.status != http.StatusNoContent || r.body != nil {
			t.Errorf("delete = %d %v", r.status, r.body)
		}
	})

	t.Run("unknown_route", func(t *testing.T) {
		if r := do(t, s, "GET", "/api/nope", nil); r.status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", r.status)
		}
		if r := do(t, s, "PUT", "/api/org", nil); r.status != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", r.status)
		}
	})
}

func TestRequestID(t *testing.T) {
	s := newServer(t, testutil.OrgBlueprint)

	r := do(t, s, "GET", "/api/org", nil)
	if len(r.header.Get(server.RequestIDHeader)) != 36 {
		t.Errorf("request id = %q", r.header.Get(server.RequestIDHeader))
	}
	const id = "0b4f1d9e-8d0c-4a43-9d8f-8a3c1e6a2f10"
	r = do(t, s, "GET", "/api/org", nil, server.RequestIDHeader, id)
	testutil.AssertEqual(t, r.header.Get(server.RequestIDHeader), id)
	r = do(t, s, "GET", "/api/org", nil, server.RequestIDHeader, "not-a-uuid")
	if r.header.Get(server.RequestIDHeader) == "not-a-uuid" {
		t.Error("malformed request id was echoed")
	}
}

// -----------------------------------------------------------------------------
// Authenticator
// -----------------------------------------------------------------------------

func TestServeAuth(t *testing.T) {
	prev := executor.HashCost
	executor.HashCost = bcrypt.MinCost
	defer func() { executor.HashCost = prev }()

	s := newServer(t, testutil.OrgModels+`
authenticator: {method: basic}
entrypoints:
  - target: Org
    identify: slug
    authorize: "@auth.id != null"
    endpoints: [get]
`)

	r := do(t, s, "POST", "/auth/register", map[string]any{"name": "Ada", "username": "ada", "password": "pw"})
	if r.status != http.StatusCreated || r.body["username"] != "ada" {
		t.Fatalf("register = %d %v", r.status, r.body)
	}
	if r := do(t, s, "POST", "/auth/register", map[string]any{"name": "Ada", "username": "ada", "password": "pw"}); r.status != http.StatusBadRequest {
		t.Errorf("duplicate register = %d, want 400", r.status)
	}

	if r := do(t, s, "POST", "/auth/login", map[string]any{"username": "ada", "password": "no"}); r.status != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", r.status)
	}
	r = do(t, s, "POST", "/auth/login", map[string]any{"username": "ada", "password": "pw"})
	token, _ := r.body["token"].(string)
	if r.status != http.StatusOK || token == "" {
		t.Fatalf("login = %d %v", r.status, r.body)
	}

	if r := do(t, s, "GET", "/api/org/acme", nil); r.status != http.StatusUnauthorized {
		t.Errorf("anonymous get = %d, want 401", r.status)
	}
	if r := do(t, s, "GET", "/api/org/acme", nil, "Authorization", "Bearer "+token); r.status != http.StatusOK {
		t.Errorf("authenticated get = %d %v", r.status, r.body)
	}

	if r := do(t, s, "POST", "/auth/logout", nil); r.status != http.StatusUnauthorized {
		t.Errorf("logout without token = %d, want 401", r.status)
	}
	if r := do(t, s, "POST", "/auth/logout", nil, "Authorization", "Bearer "+token); r.status != http.StatusNoContent {
		t.Errorf("logout = %d, want 204", r.status)
	}
	if r := do(t, s, "GET", "/api/org/acme", nil, "Authorization", "Bearer "+token); r.status != http.StatusUnauthorized {
		t.Errorf("get after logout = %d, want 401", r.status)
	}
}

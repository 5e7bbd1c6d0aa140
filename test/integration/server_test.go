package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reposync/admin-backend/internal/database"
	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/http/handler"
	"github.com/reposync/admin-backend/internal/http/router"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/scim"
	"github.com/reposync/admin-backend/internal/security"
	"github.com/reposync/admin-backend/internal/service"
)

// fakeDirectory is an in-memory stand-in for the remote directory service.
// Filter evaluation is deliberately loose: a resource matches when any
// attribute clause in the filter matches it, which is enough for the
// fixtures these tests seed.
type fakeDirectory struct {
	mu     sync.Mutex
	users  []scim.User
	groups []scim.Group
	repos  []scim.Repository

	userSearches  int
	groupSearches int
	nextGroupID   int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{nextGroupID: 100}
}

var filterClausePattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9.\[\]]*) (eq|sw|ew|co) "((?:[^"\\]|\\.)*)"`)

type filterClause struct {
	attr  string
	op    string
	value string
}

func parseFilterClauses(filter string) []filterClause {
	matches := filterClausePattern.FindAllStringSubmatch(filter, -1)
	clauses := make([]filterClause, 0, len(matches))
	for _, m := range matches {
		value := strings.ReplaceAll(m[3], `\"`, `"`)
		value = strings.ReplaceAll(value, `\\`, `\`)
		clauses = append(clauses, filterClause{attr: m[1], op: m[2], value: value})
	}
	return clauses
}

func matchOp(op, have, want string) bool {
	switch op {
	case "eq":
		return have == want
	case "sw":
		return strings.HasPrefix(have, want)
	case "ew":
		return strings.HasSuffix(have, want)
	case "co":
		return strings.Contains(have, want)
	}
	return false
}

func userMatches(u scim.User, clauses []filterClause) bool {
	if len(clauses) == 0 {
		return true
	}
	for _, c := range clauses {
		switch {
		case c.attr == "id":
			if matchOp(c.op, u.ID, c.value) {
				return true
			}
		case c.attr == "userName":
			if matchOp(c.op, u.UserName, c.value) {
				return true
			}
		case c.attr == "displayName":
			if matchOp(c.op, u.DisplayName, c.value) {
				return true
			}
		case c.attr == "emails.value":
			for _, e := range u.Emails {
				if matchOp(c.op, e.Value, c.value) {
					return true
				}
			}
		case strings.HasPrefix(c.attr, "groups.display"):
			for _, g := range u.Groups {
				if matchOp(c.op, g.Display, c.value) {
					return true
				}
			}
		}
	}
	return false
}

func groupMatches(g scim.Group, clauses []filterClause) bool {
	if len(clauses) == 0 {
		return true
	}
	for _, c := range clauses {
		switch c.attr {
		case "id":
			if matchOp(c.op, g.ID, c.value) {
				return true
			}
		case "displayName":
			if matchOp(c.op, g.DisplayName, c.value) {
				return true
			}
		}
	}
	return false
}

func repoMatches(rep scim.Repository, clauses []filterClause) bool {
	if len(clauses) == 0 {
		return true
	}
	for _, c := range clauses {
		switch c.attr {
		case "id":
			if matchOp(c.op, rep.ID, c.value) {
				return true
			}
		case "displayName":
			if matchOp(c.op, rep.DisplayName, c.value) {
				return true
			}
		}
	}
	return false
}

func (d *fakeDirectory) handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/ServiceProviderConfig", func(w http.ResponseWriter, r *http.Request) {
		writeSCIM(w, http.StatusOK, map[string]any{"documentationUri": "about:blank"})
	})

	r.Get("/Users", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.userSearches++
		clauses := parseFilterClauses(r.URL.Query().Get("filter"))
		var matched []scim.User
		for _, u := range d.users {
			if userMatches(u, clauses) {
				matched = append(matched, u)
			}
		}
		writeSCIM(w, http.StatusOK, scim.ListResponse[scim.User]{
			TotalResults: len(matched),
			Resources:    matched,
		})
	})

	r.Get("/Users/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, u := range d.users {
			if u.ID == chi.URLParam(r, "id") {
				writeSCIM(w, http.StatusOK, u)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	r.Get("/Groups", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.groupSearches++
		clauses := parseFilterClauses(r.URL.Query().Get("filter"))
		var matched []scim.Group
		for _, g := range d.groups {
			if groupMatches(g, clauses) {
				matched = append(matched, g)
			}
		}
		writeSCIM(w, http.StatusOK, scim.ListResponse[scim.Group]{
			TotalResults: len(matched),
			Resources:    matched,
		})
	})

	r.Get("/Groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if g := d.findGroup(chi.URLParam(r, "id")); g != nil {
			writeSCIM(w, http.StatusOK, *g)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	r.Post("/Groups", func(w http.ResponseWriter, r *http.Request) {
		var g scim.Group
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if g.ID == "" {
			d.nextGroupID++
			g.ID = fmt.Sprintf("g-%d", d.nextGroupID)
		}
		d.groups = append(d.groups, g)
		writeSCIM(w, http.StatusCreated, g)
	})

	r.Patch("/Groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req scim.PatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		g := d.findGroup(chi.URLParam(r, "id"))
		if g == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		for _, op := range req.Operations {
			d.applyGroupOp(g, string(op.Op), op.Path, op.Value)
		}
		writeSCIM(w, http.StatusOK, *g)
	})

	r.Delete("/Groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		id := chi.URLParam(r, "id")
		for i, g := range d.groups {
			if g.ID == id {
				d.groups = append(d.groups[:i], d.groups[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	r.Get("/Repositories", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		clauses := parseFilterClauses(r.URL.Query().Get("filter"))
		var matched []scim.Repository
		for _, rep := range d.repos {
			if repoMatches(rep, clauses) {
				matched = append(matched, rep)
			}
		}
		writeSCIM(w, http.StatusOK, scim.ListResponse[scim.Repository]{
			TotalResults: len(matched),
			Resources:    matched,
		})
	})

	return r
}

func (d *fakeDirectory) findGroup(id string) *scim.Group {
	for i := range d.groups {
		if d.groups[i].ID == id {
			return &d.groups[i]
		}
	}
	return nil
}

var removeMemberPattern = regexp.MustCompile(`members\[value eq "((?:[^"\\]|\\.)*)"\]`)

func (d *fakeDirectory) applyGroupOp(g *scim.Group, op, path string, value any) {
	switch op {
	case "add":
		raw, err := json.Marshal(value)
		if err != nil {
			return
		}
		var members []scim.Member
		if err := json.Unmarshal(raw, &members); err != nil {
			return
		}
		g.Members = append(g.Members, members...)
	case "remove":
		m := removeMemberPattern.FindStringSubmatch(path)
		if m == nil {
			return
		}
		kept := g.Members[:0]
		for _, member := range g.Members {
			if member.Value != m[1] {
				kept = append(kept, member)
			}
		}
		g.Members = kept
	}
}

func (d *fakeDirectory) groupByName(name string) *scim.Group {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.groups {
		if d.groups[i].DisplayName == name {
			return &d.groups[i]
		}
	}
	return nil
}

func (d *fakeDirectory) groupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.groups)
}

func (d *fakeDirectory) userSearchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userSearches
}

func writeSCIM(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type testServerOptions struct {
	cache   service.SearchCacheStore
	archive service.ImportArchive
}

type adminTestEnv struct {
	baseURL string
	client  *http.Client
	jwt     *security.JWTManager
	dir     *fakeDirectory
	db      *gorm.DB
	audits  repository.SyncAuditRepository
}

func newAdminTestServer(t *testing.T, opts testServerOptions) *adminTestEnv {
	t.Helper()

	dir := newFakeDirectory()
	dirSrv := httptest.NewServer(dir.handler())
	t.Cleanup(dirSrv.Close)

	cfg, err := directory.NewConfig([]directory.KindTemplate{
		{Kind: "system_admin", Template: "jc_roles_sysadm", Role: directory.RoleSystemAdmin, HasRole: true},
		{Kind: "repository_admin", Template: "jc_{repository_id}_roles_repoadm", Role: directory.RoleRepositoryAdmin, HasRole: true},
		{Kind: directory.KindUserDefined, Template: "jc_{repository_id}_groups_{user_defined_id}"},
	})
	if err != nil {
		t.Fatalf("build directory config: %v", err)
	}
	codec := directory.NewCodec(cfg)

	scimClient, err := scim.NewHTTPClient(dirSrv.URL, "test-token", 5*time.Second)
	if err != nil {
		t.Fatalf("create scim client: %v", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	audits := repository.NewSyncAuditRepository(db)
	jobs := repository.NewImportJobRepository(db)
	admin := service.NewDirectoryAdminService(scimClient, cfg, codec, opts.cache, time.Minute, audits)
	imports := service.NewImportService(jobs, admin, opts.archive, 1000)
	jwtMgr := security.NewJWTManager("abcdefghijklmnopqrstuvwxyz123456", "reposync", "admin-api", "memberOf")

	apiSrv := httptest.NewServer(router.NewRouter(router.Dependencies{
		DirectoryHandler:  handler.NewDirectoryHandler(admin),
		ImportHandler:     handler.NewImportHandler(imports),
		PrincipalHandler:  handler.NewPrincipalHandler(),
		AuditHandler:      handler.NewAuditHandler(audits),
		JWTManager:        jwtMgr,
		PrincipalResolver: service.NewPrincipalResolver(cfg, codec),
		APIRateLimitRPM:   10000,
	}))
	t.Cleanup(apiSrv.Close)

	return &adminTestEnv{
		baseURL: apiSrv.URL,
		client:  apiSrv.Client(),
		jwt:     jwtMgr,
		dir:     dir,
		db:      db,
		audits:  audits,
	}
}

func (e *adminTestEnv) token(t *testing.T, subject string, memberOf ...string) string {
	t.Helper()
	token, err := e.jwt.IssueAccessToken(subject, memberOf, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *adminTestEnv) do(t *testing.T, method, path, token, contentType string, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.baseURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, raw
}

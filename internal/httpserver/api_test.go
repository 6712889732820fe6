package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"buildtrack/internal/auth"
	"buildtrack/internal/logger"
	"buildtrack/internal/models"
	"buildtrack/internal/rbac"
	"buildtrack/internal/service"
	"buildtrack/internal/storage"
)

type testEnv struct {
	router http.Handler
	db     *gorm.DB

	admin    models.User
	manager  models.User
	engineer models.User
	observer models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("SESSION_SECRET", "test-secret")

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	env := &testEnv{router: NewRouter(db, store, logger.New()), db: db}
	env.admin = seedUser(t, db, rbac.RoleAdmin)
	env.manager = seedUser(t, db, rbac.RoleManager)
	env.engineer = seedUser(t, db, rbac.RoleEngineer)
	env.observer = seedUser(t, db, rbac.RoleObserver)
	return env
}

func seedUser(t *testing.T, db *gorm.DB, role rbac.Role) models.User {
	t.Helper()
	hash, err := auth.HashPassword("pass1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{
		ID:           uuid.NewString(),
		Email:        string(role) + "@example.com",
		PasswordHash: hash,
		FullName:     "Test " + string(role),
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed %s: %v", role, err)
	}
	return u
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := auth.Sign(auth.Session{ID: u.ID, Name: u.FullName, Role: u.Role, Email: u.Email})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, env *testEnv, as *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.AddCookie(&http.Cookie{Name: auth.CookieName(), Value: tokenFor(t, *as)})
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func seedCatalog(t *testing.T, env *testEnv) (uint, uint) {
	t.Helper()
	rr := doJSON(t, env, &env.manager, http.MethodPost, "/api/projects", map[string]any{"name": "Plant"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed project: %d %s", rr.Code, rr.Body.String())
	}
	var p models.Project
	_ = json.Unmarshal(rr.Body.Bytes(), &p)
	rr = doJSON(t, env, &env.manager, http.MethodPost, "/api/objects", map[string]any{"name": "Hall 1", "project_id": p.ID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed object: %d %s", rr.Code, rr.Body.String())
	}
	var o models.Object
	_ = json.Unmarshal(rr.Body.Bytes(), &o)
	return p.ID, o.ID
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	env := setupTestEnv(t)
	for _, path := range []string{"/api/defects", "/api/projects", "/api/reports/stats"} {
		rr := doJSON(t, env, nil, http.MethodGet, path, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "unauthorized") {
			t.Errorf("GET %s error body = %s", path, rr.Body.String())
		}
	}
}

func TestHealthzIsPublic(t *testing.T) {
	env := setupTestEnv(t)
	rr := doJSON(t, env, nil, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rr.Code)
	}
}

func TestObserverCannotCreateDefect(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)

	rr := doJSON(t, env, &env.observer, http.MethodPost, "/api/defects", map[string]any{
		"title": "observer tries", "project_id": pid, "object_id": oid,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("observer create = %d, want 403", rr.Code)
	}
	var n int64
	env.db.Model(&models.Defect{}).Count(&n)
	if n != 0 {
		t.Errorf("defect rows = %d, want 0", n)
	}
	env.db.Model(&models.DefectHistory{}).Count(&n)
	if n != 0 {
		t.Errorf("history rows = %d, want 0", n)
	}
}

func TestDefectLifecycleOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)

	rr := doJSON(t, env, &env.engineer, http.MethodPost, "/api/defects", map[string]any{
		"title": "Cracked beam", "project_id": pid, "object_id": oid, "priority": "high",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	var d models.Defect
	_ = json.Unmarshal(rr.Body.Bytes(), &d)
	if d.CreatorID != env.engineer.ID {
		t.Errorf("creator = %s, want session identity", d.CreatorID)
	}

	// review is not reachable from new
	rr = doJSON(t, env, &env.engineer, http.MethodPatch, fmt.Sprintf("/api/defects/%d", d.ID), map[string]any{"status": "review"})
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "invalid_transition") {
		t.Fatalf("illegal transition = %d %s, want 400 invalid_transition", rr.Code, rr.Body.String())
	}

	for _, next := range []string{"in_progress", "review", "closed"} {
		rr = doJSON(t, env, &env.engineer, http.MethodPatch, fmt.Sprintf("/api/defects/%d", d.ID), map[string]any{"status": next})
		if rr.Code != http.StatusOK {
			t.Fatalf("transition to %s = %d %s", next, rr.Code, rr.Body.String())
		}
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &d)
	if d.ClosedAt == nil {
		t.Error("closedAt must be set after closing")
	}

	rr = doJSON(t, env, &env.engineer, http.MethodGet, fmt.Sprintf("/api/defects/%d/history", d.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("history = %d", rr.Code)
	}
	var hist []models.DefectHistory
	_ = json.Unmarshal(rr.Body.Bytes(), &hist)
	if len(hist) != 4 { // created + three transitions
		t.Errorf("history rows = %d, want 4", len(hist))
	}
}

func TestListPaginationOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)
	for i := 0; i < 15; i++ {
		rr := doJSON(t, env, &env.manager, http.MethodPost, "/api/defects", map[string]any{
			"title": fmt.Sprintf("bulk %d", i), "project_id": pid, "object_id": oid,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed defect: %d", rr.Code)
		}
	}
	type listResp struct {
		Items []service.DefectListItem `json:"items"`
		Page  int                      `json:"page"`
		Limit int                      `json:"limit"`
	}
	var p1, p2 listResp
	rr := doJSON(t, env, &env.manager, http.MethodGet, "/api/defects?limit=10&page=1&sortBy=created_at&sortDir=asc", nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &p1)
	rr = doJSON(t, env, &env.manager, http.MethodGet, "/api/defects?limit=10&page=2&sortBy=created_at&sortDir=asc", nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &p2)
	if len(p1.Items) != 10 || len(p2.Items) != 5 {
		t.Fatalf("pages = %d/%d items, want 10/5", len(p1.Items), len(p2.Items))
	}
	if p1.Page != 1 || p2.Page != 2 || p1.Limit != 10 {
		t.Errorf("page/limit echo wrong: %+v %+v", p1.Page, p2.Page)
	}
	seen := map[uint]bool{}
	for _, it := range p1.Items {
		seen[it.ID] = true
	}
	for _, it := range p2.Items {
		if seen[it.ID] {
			t.Errorf("id %d repeated across pages", it.ID)
		}
	}
}

func TestSignupAndDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	body := map[string]any{"email": "New.User@Example.com", "password": "secret", "full_name": "New User"}
	rr := doJSON(t, env, nil, http.MethodPost, "/api/auth/signup", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup = %d %s", rr.Code, rr.Body.String())
	}
	var u models.User
	if err := env.db.First(&u, "email = ?", "new.user@example.com").Error; err != nil {
		t.Fatalf("signup row: %v", err)
	}
	if u.Role != rbac.RoleEngineer {
		t.Errorf("self-registered role = %s, want engineer", u.Role)
	}
	rr = doJSON(t, env, nil, http.MethodPost, "/api/auth/signup", body)
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), "exists") {
		t.Errorf("duplicate signup = %d %s, want 409 exists", rr.Code, rr.Body.String())
	}
}

func TestSigninSetsCookie(t *testing.T) {
	env := setupTestEnv(t)
	rr := doJSON(t, env, nil, http.MethodPost, "/api/auth/signin", map[string]any{
		"email": env.manager.Email, "password": "pass1234",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signin = %d %s", rr.Code, rr.Body.String())
	}
	cookie := rr.Result().Cookies()
	found := false
	for _, c := range cookie {
		if c.Name == auth.CookieName() && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("signin must set the session cookie")
	}

	rr = doJSON(t, env, nil, http.MethodPost, "/api/auth/signin", map[string]any{
		"email": env.manager.Email, "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)
	rr := doJSON(t, env, &env.engineer, http.MethodPost, "/api/defects", map[string]any{
		"title": "with file", "project_id": pid, "object_id": oid,
	})
	var d models.Defect
	_ = json.Unmarshal(rr.Body.Bytes(), &d)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "huge.bin")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(bytes.Repeat([]byte("x"), 25<<20)); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/defects/%d/files", d.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: auth.CookieName(), Value: tokenFor(t, env.engineer)})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "too_large") {
		t.Fatalf("oversized upload = %d %s, want 400 too_large", rec.Code, rec.Body.String())
	}
	var n int64
	env.db.Model(&models.File{}).Count(&n)
	if n != 0 {
		t.Errorf("file rows = %d, want 0", n)
	}
}

func TestUploadAndDownloadRoundtrip(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)
	rr := doJSON(t, env, &env.engineer, http.MethodPost, "/api/defects", map[string]any{
		"title": "attach", "project_id": pid, "object_id": oid,
	})
	var d models.Defect
	_ = json.Unmarshal(rr.Body.Bytes(), &d)

	content := "photo of the crack"
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "crack.jpg")
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/defects/%d/files", d.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: auth.CookieName(), Value: tokenFor(t, env.engineer)})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
	}
	var f models.File
	_ = json.Unmarshal(rec.Body.Bytes(), &f)

	rr = doJSON(t, env, &env.observer, http.MethodGet, fmt.Sprintf("/api/files/%d/download", f.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download = %d", rr.Code)
	}
	if rr.Body.String() != content {
		t.Errorf("downloaded %q, want %q", rr.Body.String(), content)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="crack.jpg"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestSoftDeletedCommentHiddenFromListing(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)
	rr := doJSON(t, env, &env.engineer, http.MethodPost, "/api/defects", map[string]any{
		"title": "talk", "project_id": pid, "object_id": oid,
	})
	var d models.Defect
	_ = json.Unmarshal(rr.Body.Bytes(), &d)

	rr = doJSON(t, env, &env.engineer, http.MethodPost, fmt.Sprintf("/api/defects/%d/comments", d.ID), map[string]any{"content": "first"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("comment = %d", rr.Code)
	}
	var c models.Comment
	_ = json.Unmarshal(rr.Body.Bytes(), &c)

	rr = doJSON(t, env, &env.engineer, http.MethodDelete, fmt.Sprintf("/api/comments/%d", c.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("comment delete = %d", rr.Code)
	}

	rr = doJSON(t, env, &env.engineer, http.MethodGet, fmt.Sprintf("/api/defects/%d/comments", d.ID), nil)
	var list []models.Comment
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Errorf("listing shows %d comments, want 0", len(list))
	}
	var n int64
	env.db.Model(&models.Comment{}).Count(&n)
	if n != 1 {
		t.Errorf("comment rows = %d, soft delete must retain the row", n)
	}
}

func TestExportCSV(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)
	rr := doJSON(t, env, &env.manager, http.MethodPost, "/api/defects", map[string]any{
		"title": `panel "A" cracked, urgent`, "project_id": pid, "object_id": oid,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed defect: %d", rr.Code)
	}

	rr = doJSON(t, env, &env.engineer, http.MethodGet, "/api/reports/defects/export?format=csv", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("engineer export = %d, want 403", rr.Code)
	}

	rr = doJSON(t, env, &env.observer, http.MethodGet, "/api/reports/defects/export?format=csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export = %d %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,title,status") {
		t.Errorf("header = %q", lines[0])
	}
	// embedded quotes doubled, field quoted
	if !strings.Contains(lines[1], `"panel ""A"" cracked, urgent"`) {
		t.Errorf("row quoting wrong: %q", lines[1])
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	pid, oid := seedCatalog(t, env)
	for i := 0; i < 3; i++ {
		doJSON(t, env, &env.manager, http.MethodPost, "/api/defects", map[string]any{
			"title": "stat", "project_id": pid, "object_id": oid,
		})
	}
	rr := doJSON(t, env, &env.manager, http.MethodGet, "/api/reports/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats = %d", rr.Code)
	}
	var stats service.Stats
	_ = json.Unmarshal(rr.Body.Bytes(), &stats)
	if stats.Total != 3 || stats.ByStatus["new"] != 3 {
		t.Errorf("stats = %+v", stats)
	}

	rr = doJSON(t, env, &env.engineer, http.MethodGet, "/api/reports/stats", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("engineer stats = %d, want 403", rr.Code)
	}
}

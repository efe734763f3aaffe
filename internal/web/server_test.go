package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stocktransfer/internal/config"
	"github.com/JonMunkholm/stocktransfer/internal/core"
	"github.com/JonMunkholm/stocktransfer/internal/erp"
)

const storeFile = "COD_BARRA;CANTIDAD;TIENDA\n" +
	"777;1;BELLA VISTA\n" +
	"777;3;PARK PLAZA\n"

// fakeERP knows one product and records created pickings.
type fakeERP struct {
	mu       sync.Mutex
	pickings int
	nextID   int64
}

func (f *fakeERP) SearchProduct(_ context.Context, field, value string) (*erp.ProductRef, error) {
	if field == erp.FieldBarcode && value == "777" {
		return &erp.ProductRef{ID: 2, Name: "Pantalón", UomID: 1}, nil
	}
	return nil, nil
}

func (f *fakeERP) CreatePicking(context.Context, erp.PickingRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pickings++
	f.nextID++
	return f.nextID, nil
}

func (f *fakeERP) CreateMove(context.Context, erp.MoveRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

type fakeStatus struct{}

func (fakeStatus) Connected() bool  { return true }
func (fakeStatus) Database() string { return "prod" }

func testConfig() *config.Config {
	return &config.Config{
		Upload:  config.UploadConfig{MaxFileSize: 1 << 20, AllowedExt: ".txt", MaxConcurrent: 1},
		Metrics: config.MetricsConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *fakeERP) {
	t.Helper()
	fake := &fakeERP{nextID: 100}
	locs := &config.Locations{
		Source:       "BODEGA",
		Locations:    map[string]int64{"BODEGA": 8, "BELLA VISTA": 20, "PARK PLAZA": 21},
		PickingTypes: map[string]int64{"BODEGA": 1, "BELLA VISTA": 30, "PARK PLAZA": 31},
		Aliases:      map[string]string{},
	}
	svc, err := core.NewService(fake, locs, nil, core.OptionsFromConfig(cfg))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	s := NewServer(svc, fakeStatus{}, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, fake
}

// uploadRequest builds a multipart POST with files under field.
func uploadRequest(t *testing.T, path, field string, files map[string]string, extra map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = fw.Write([]byte(content))
	}
	for k, v := range extra {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateRunJSON(t *testing.T) {
	s, fake := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/api/runs", "files", map[string]string{"tiendas.txt": storeFile}, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var run core.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !run.OK() || len(run.Files) != 1 {
		t.Errorf("run OK = %v, files = %d", run.OK(), len(run.Files))
	}
	if fake.pickings != 2 {
		t.Errorf("pickings = %d, want 2", fake.pickings)
	}
}

func TestCreateRunDryRun(t *testing.T) {
	s, fake := newTestServer(t, testConfig())

	req := uploadRequest(t, "/api/runs", "files", map[string]string{"tiendas.txt": storeFile}, map[string]string{"dry_run": "on"})
	rec := serve(s, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if fake.pickings != 0 {
		t.Errorf("pickings = %d, want 0 on dry run", fake.pickings)
	}
}

func TestCreateRunNoFiles(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/api/runs", "files", nil, map[string]string{"dry_run": "true"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "FILE001" {
		t.Errorf("code = %q, want %q", resp.Code, "FILE001")
	}
}

func TestCreateRunFormRedirects(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/runs", "files", map[string]string{"tiendas.txt": storeFile}, nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/runs/") {
		t.Fatalf("Location = %q", loc)
	}

	page := serve(s, httptest.NewRequest(http.MethodGet, loc, nil))
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "tiendas.txt") {
		t.Errorf("run page status = %d", page.Code)
	}
}

func TestCreateRunHTMX(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := uploadRequest(t, "/runs", "files", map[string]string{"tiendas.txt": storeFile}, nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Error("HTMX response must be a fragment")
	}
}

func TestGetRunErrors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"invalid id", "/api/runs/not-a-uuid", http.StatusBadRequest},
		{"unknown id", "/api/runs/" + uuid.NewString(), http.StatusNotFound},
		{"unknown report", "/api/runs/" + uuid.NewString() + "/report.pdf", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRunReports(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/api/runs", "files", map[string]string{"tiendas.txt": storeFile}, nil))
	var run core.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}

	tests := []struct {
		ext         string
		contentType string
	}{
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"pdf", "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID.String()+"/report."+tt.ext, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			want := "transferencias-" + run.ID.String() + "." + tt.ext
			if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, want) {
				t.Errorf("Content-Disposition = %q, want %q", got, want)
			}
			if rec.Body.Len() == 0 {
				t.Error("empty report")
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	for i := 0; i < 3; i++ {
		serve(s, uploadRequest(t, "/api/runs", "files", map[string]string{"tiendas.txt": storeFile}, map[string]string{"dry_run": "1"}))
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil))
	var runs []core.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
}

func TestValidate(t *testing.T) {
	s, fake := newTestServer(t, testConfig())

	t.Run("valid file", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/api/validate", "file", map[string]string{"tiendas.txt": storeFile}, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var vr core.ValidationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &vr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !vr.Valid {
			t.Errorf("Valid = false, errors = %+v", vr.Errors)
		}
		if fake.pickings != 0 {
			t.Errorf("pickings = %d, want 0", fake.pickings)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/api/validate", "file", map[string]string{"tiendas.csv": storeFile}, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if !strings.Contains(rec.Body.String(), "FILE005") {
			t.Errorf("body = %s", rec.Body.String())
		}
	})
}

func TestDashboardAndStatus(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "prod") {
		t.Error("dashboard missing ERP database")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var st statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.ERP.Connected || st.ERP.Database != "prod" || st.Limiter.MaxConcurrent != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestAPIKeyRequiredOnlyForAPI(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s, _ := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want %d", rec.Code, http.StatusOK)
	}

	// The browser form has no key.
	rec = serve(s, uploadRequest(t, "/runs", "files", map[string]string{"tiendas.txt": storeFile}, nil))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("form status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s, _ := newTestServer(t, cfg)

	var last int
	for i := 0; i < 3; i++ {
		last = serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil)).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"on", true},
		{"true", true},
		{"1", true},
		{"", false},
		{"off", false},
	}
	for _, tt := range tests {
		if got := parseBool(tt.in); got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHTMXErrorsAreSwapped(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := uploadRequest(t, "/runs", "files", nil, nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	// htmx only swaps 2xx responses.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("HX-Retarget"); got != "#result" {
		t.Errorf("HX-Retarget = %q, want %q", got, "#result")
	}
	if got := rec.Header().Get("X-Error-Status"); got != "400" {
		t.Errorf("X-Error-Status = %q, want %q", got, "400")
	}
	body := rec.Body.String()
	if !strings.Contains(body, "FILE001") || !strings.Contains(body, `role="alert"`) {
		t.Errorf("body = %s, want the FILE001 alert", body)
	}
}

func TestHTMXRateLimitIsSwapped(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	s, _ := newTestServer(t, cfg)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("HX-Request", "true")
		rec = serve(s, req)
	}
	if rec.Code != http.StatusOK || rec.Header().Get("X-Error-Status") != "429" {
		t.Errorf("status = %d, X-Error-Status = %q, want 200 and 429", rec.Code, rec.Header().Get("X-Error-Status"))
	}
	if !strings.Contains(rec.Body.String(), "RATE001") {
		t.Errorf("body = %s, want RATE001", rec.Body.String())
	}
}

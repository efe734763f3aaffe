package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/stocktransfer/internal/core"
	"github.com/JonMunkholm/stocktransfer/internal/logging"
	"github.com/JonMunkholm/stocktransfer/internal/web/templates"
)

// dashboardRuns is how many recent runs the dashboard lists.
const dashboardRuns = 20

// handleDashboard renders the upload page with recent runs.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns(r.Context(), dashboardRuns)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	data := templates.DashboardData{
		Runs:       runs,
		Limiter:    s.service.LimiterStatus(),
		AllowedExt: s.service.AllowedExt(),
	}
	if s.erp != nil {
		data.ERPConnected = s.erp.Connected()
		data.ERPDatabase = s.erp.Database()
	}
	render(w, r, templates.Dashboard(data))
}

// handleCreateRun processes the uploaded files. It serves the HTMX form and
// the plain form fallback at /runs, and the JSON API at /api/runs.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r, "files", "file")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	opts := core.ProcessOptions{DryRun: parseBool(r.FormValue("dry_run"))}

	ctx := WithRequestMetadata(r.Context(), r)
	run, err := s.service.ProcessFiles(ctx, files, opts)
	if err != nil {
		if errors.Is(err, core.ErrTooManyRuns) {
			w.Header().Set("Retry-After", "30")
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}

	switch {
	case isHTMX(r):
		render(w, r, templates.RunResult(run))
	case r.URL.Path == "/runs":
		http.Redirect(w, r, "/runs/"+run.ID.String(), http.StatusSeeOther)
	default:
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, run)
	}
}

// handleValidate checks a single file without touching stock.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r, "file")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	f := files[0]
	if !s.service.Accepts(f.Name) {
		err := fmt.Errorf("%w: %s", core.ErrUnsupportedFile, f.Name)
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, s.service.Validate(r.Context(), f.Name, f.Data))
}

// handleListRuns returns recent run summaries, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	runs, err := s.service.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// handleGetRun returns the full report of a run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, run)
}

// handleRunPage renders the report of a run as a page.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	render(w, r, templates.RunPage(run))
}

func (s *Server) handleRunReportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, "xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		core.BuildRunXLSX)
}

func (s *Server) handleRunReportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, "pdf", "application/pdf", core.BuildRunPDF)
}

// serveReport builds a downloadable report of a run.
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, ext, contentType string, build func(*core.Run) ([]byte, error)) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	data, err := build(run)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transferencias-%s.%s"`, run.ID, ext))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("report write failed", "error", err)
	}
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Limiter core.LimiterStatus `json:"limiter"`
	ERP     erpStatus          `json:"erp"`
}

type erpStatus struct {
	Connected bool   `json:"connected"`
	Database  string `json:"database"`
}

// handleStatus reports limiter and ERP session state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Limiter: s.service.LimiterStatus()}
	if s.erp != nil {
		resp.ERP = erpStatus{Connected: s.erp.Connected(), Database: s.erp.Database()}
	}
	writeJSON(w, resp)
}

// loadRun resolves the {runID} URL parameter. It writes the error response
// and returns false when the run cannot be loaded.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*core.Run, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, errInvalidRunID, http.StatusBadRequest)
		return nil, false
	}

	run, err := s.service.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return run, true
}

// readUploads parses the multipart body and reads every file posted under
// the first of fields that has any.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request, fields ...string) ([]core.NamedFile, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, errFileTooLarge
	}

	var headers []*multipart.FileHeader
	for _, field := range fields {
		if headers = r.MultipartForm.File[field]; len(headers) > 0 {
			break
		}
	}
	if len(headers) == 0 {
		return nil, core.ErrNoFiles
	}

	files := make([]core.NamedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFileHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, core.NamedFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// render writes an HTML component.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBool accepts strconv booleans and the "on" an HTML checkbox posts.
func parseBool(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"probe-go/internal/analysis"
	"probe-go/internal/config"
	"probe-go/internal/metrics"
	"probe-go/internal/models"
	"probe-go/internal/probe"
	"probe-go/internal/report"
	"probe-go/internal/service"
	"probe-go/internal/state"
)

var errNoHistory = errors.New("no historical dataset loaded")

type Handler struct {
	State      *state.AppState
	CSVService *analysis.CSVService
	Metrics    *metrics.Metrics
	Config     config.Config

	// NewDataSource opens historical project stores; replaced in tests.
	NewDataSource func(service.DataSourceConfig) (service.DataSource, error)
}

func NewHandler(st *state.AppState, csv *analysis.CSVService, m *metrics.Metrics, cfg config.Config) *Handler {
	return &Handler{
		State:         st,
		CSVService:    csv,
		Metrics:       m,
		Config:        cfg,
		NewDataSource: service.NewDataSource,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	// Historical data
	r.Post("/upload", h.Upload)
	r.Post("/db/load", h.LoadFromDB)
	r.Get("/status", h.GetStatus)
	r.Delete("/dataset", h.ClearDataset)

	// Statistics and estimation
	r.Get("/describe", h.Describe)
	r.Get("/regression", h.GetRegression)
	r.Post("/estimate", h.Estimate)
	r.Get("/plot", h.GetPlot)

	r.Handle("/metrics", h.Metrics.Handler())
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Historical data
// ============================================================================

// Upload stores a CSV of historical projects and makes it the active dataset
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadSize)
	if err := r.ParseMultipartForm(h.Config.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file too large or malformed form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file uploaded"))
		return
	}
	defer file.Close()

	// Validate file extension
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, errors.New("only CSV files are allowed"))
		return
	}

	// Create upload directory
	if err := os.MkdirAll(h.Config.UploadDir, 0o755); err != nil {
		log.Printf("upload: create %s: %v", h.Config.UploadDir, err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to save file"))
		return
	}

	// Save file under a unique name; concurrent uploads may share a filename
	dst, err := os.CreateTemp(h.Config.UploadDir, "upload-*.csv")
	if err != nil {
		log.Printf("upload: create in %s: %v", h.Config.UploadDir, err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to save file"))
		return
	}
	filePath := dst.Name()
	_, err = io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Printf("upload: write %s: %v", filePath, err)
		os.Remove(filePath)
		writeError(w, http.StatusInternalServerError, errors.New("failed to save file"))
		return
	}

	cols := analysis.Columns{
		Size:   r.FormValue("size_column"),
		Effort: r.FormValue("effort_column"),
	}
	hist, err := h.CSVService.LoadFile(filePath, cols)
	if err != nil {
		os.Remove(filePath)
		writeError(w, statusFor(err), fmt.Errorf("failed to parse CSV: %w", err))
		return
	}
	hist.Name = filepath.Base(header.Filename)

	h.storeHistory(w, hist, fmt.Sprintf("File '%s' loaded", header.Filename))
}

// LoadFromDB reads historical projects from a Postgres table
func (h *Handler) LoadFromDB(w http.ResponseWriter, r *http.Request) {
	var req models.DBLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON"))
		return
	}

	dbConfig := h.Config.Database
	if c := req.Connection; c != nil {
		dbConfig = service.DataSourceConfig{
			Type:     "postgres",
			Host:     c.Host,
			Port:     c.Port,
			User:     c.User,
			Password: c.Password,
			DBName:   c.DBName,
			SSLMode:  c.SSLMode,
		}
	}

	ds, err := h.NewDataSource(dbConfig)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ds.Connect(r.Context(), dbConfig); err != nil {
		log.Printf("db/load: connect %s: %v", dbConfig.Host, err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("failed to connect: %w", err))
		return
	}
	defer ds.Close()

	hist, err := ds.LoadHistory(r.Context(), service.HistoryQuery{
		Table:        req.Table,
		SizeColumn:   req.SizeColumn,
		EffortColumn: req.EffortColumn,
		IDColumn:     req.IDColumn,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	h.storeHistory(w, hist, fmt.Sprintf("Table '%s' loaded", req.Table))
}

func (h *Handler) storeHistory(w http.ResponseWriter, hist *state.History, msg string) {
	h.State.SetHistory(hist)
	h.Metrics.ObserveLoad(hist.Source)

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Message:      msg,
		Source:       hist.Source,
		Name:         hist.Name,
		Rows:         hist.Dataset.Len(),
		SizeColumn:   hist.SizeColumn,
		EffortColumn: hist.EffortColumn,
		ProjectIDs:   hist.ProjectIDs,
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	hist := h.State.GetHistory()
	if hist == nil {
		writeJSON(w, http.StatusOK, models.StatusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{
		Loaded:       true,
		Source:       hist.Source,
		Name:         hist.Name,
		Rows:         hist.Dataset.Len(),
		SizeColumn:   hist.SizeColumn,
		EffortColumn: hist.EffortColumn,
		LoadedAt:     hist.LoadedAt.Format(time.RFC3339),
	})
}

func (h *Handler) ClearDataset(w http.ResponseWriter, r *http.Request) {
	h.State.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Statistics and estimation
// ============================================================================

func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	hist, ok := h.history(w)
	if !ok {
		return
	}
	desc, err := probe.Describe(hist.Dataset)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *Handler) GetRegression(w http.ResponseWriter, r *http.Request) {
	hist, ok := h.history(w)
	if !ok {
		return
	}
	m, err := probe.Fit(hist.Dataset)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, models.RegressionResponse{
		Model:      m,
		RSquared:   m.RSquared(),
		Equation:   m.String(),
		SampleSize: hist.Dataset.Len(),
		Plot:       report.Plot(hist.Dataset, m, nil),
	})
}

func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req models.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Metrics.ObserveFailure(metrics.KindInvalid)
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid JSON", probe.ErrInvalidParameter))
		return
	}
	if req.Size == nil {
		h.Metrics.ObserveFailure(metrics.KindInvalid)
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: size is required", probe.ErrInvalidParameter))
		return
	}
	level := h.Config.DefaultConfidence
	if req.Confidence != nil {
		level = *req.Confidence
	}
	hoursPerMonth := h.Config.HoursPerMonth
	if req.HoursPerMonth > 0 {
		hoursPerMonth = req.HoursPerMonth
	}

	hist, ok := h.history(w)
	if !ok {
		return
	}
	est, err := h.estimate(hist.Dataset, *req.Size, level)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	summary := report.NewSummary(hist.Dataset, est, hoursPerMonth)
	writeJSON(w, http.StatusOK, models.EstimateResponse{
		Summary:   summary,
		Narrative: report.Narrative(summary),
	})
}

// GetPlot returns the scatter and best-fit series, plus the prediction with
// its error bar when a size is given.
func (h *Handler) GetPlot(w http.ResponseWriter, r *http.Request) {
	size, hasSize, err := getFloatParam(r, "size")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	level, hasLevel, err := getFloatParam(r, "confidence")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !hasLevel {
		level = h.Config.DefaultConfidence
	}

	hist, ok := h.history(w)
	if !ok {
		return
	}
	if !hasSize {
		m, err := probe.Fit(hist.Dataset)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, report.Plot(hist.Dataset, m, nil))
		return
	}

	est, err := h.estimate(hist.Dataset, size, level)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report.Plot(hist.Dataset, est.Model, &est.Prediction))
}

func (h *Handler) estimate(ds probe.Dataset, size, level float64) (probe.Estimation, error) {
	start := time.Now()
	est, err := probe.Estimate(ds, size, level)
	h.Metrics.ObserveEstimate(start, err)
	return est, err
}

func (h *Handler) history(w http.ResponseWriter) (*state.History, bool) {
	hist := h.State.GetHistory()
	if hist == nil {
		h.Metrics.ObserveFailure(metrics.KindNoData)
		writeError(w, http.StatusConflict, errNoHistory)
		return nil, false
	}
	return hist, true
}

// ============================================================================
// Helpers
// ============================================================================

func getFloatParam(r *http.Request, name string) (float64, bool, error) {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return 0, false, nil
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q is not a number", probe.ErrInvalidParameter, name, valStr)
	}
	return val, true, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, probe.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, probe.ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrNoHeader),
		errors.Is(err, analysis.ErrNoRows),
		errors.Is(err, analysis.ErrColumnNotFound),
		errors.Is(err, analysis.ErrBadValue),
		errors.Is(err, service.ErrUnknownTable),
		errors.Is(err, service.ErrUnknownColumn),
		errors.Is(err, service.ErrNullMeasure):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v before touching the header, so an unencodable value
// becomes a 500 instead of a 200 with an empty body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
		buf.Reset()
		json.NewEncoder(&buf).Encode(models.ErrorResponse{Error: "failed to encode response"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := models.ErrorResponse{Error: err.Error()}
	switch {
	case errors.Is(err, probe.ErrInvalidParameter), errors.Is(err, probe.ErrDegenerateInput):
		resp.Kind = metrics.Kind(err)
	case errors.Is(err, errNoHistory):
		resp.Kind = metrics.KindNoData
	}
	writeJSON(w, status, resp)
}

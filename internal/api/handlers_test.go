package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"probe-go/internal/analysis"
	"probe-go/internal/config"
	"probe-go/internal/metrics"
	"probe-go/internal/models"
	"probe-go/internal/probe"
	"probe-go/internal/report"
	"probe-go/internal/service"
	"probe-go/internal/state"
)

const tutorialCSV = `Proyecto,LOCs Totales,Tiempo Real
P01,1000,50
P02,2000,110
P03,3000,150
P04,4000,210
P05,5000,260
P06,6000,300
P07,7000,360
`

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.UploadDir = t.TempDir()
	h := NewHandler(state.New(), analysis.NewCSVService(analysis.Columns{Size: cfg.SizeColumn, Effort: cfg.EffortColumn}), metrics.New(), cfg)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func upload(t *testing.T, srv http.Handler, name, body string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func do(srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	_, srv := newTestServer(t)
	rec := do(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUploadAndEstimate(t *testing.T) {
	_, srv := newTestServer(t)

	rec := upload(t, srv, "datos_tutorial.csv", tutorialCSV, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var up models.UploadResponse
	decode(t, rec, &up)
	assert.Equal(t, 7, up.Rows)
	assert.Equal(t, "LOCs Totales", up.SizeColumn)
	assert.Equal(t, "csv", up.Source)

	rec = do(srv, http.MethodGet, "/status", "")
	var st models.StatusResponse
	decode(t, rec, &st)
	assert.True(t, st.Loaded)
	assert.Equal(t, "datos_tutorial.csv", st.Name)

	rec = do(srv, http.MethodPost, "/estimate", `{"size": 3500}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var est models.EstimateResponse
	decode(t, rec, &est)
	p := est.Summary.Prediction
	assert.InDelta(t, 180.3571428571429, p.Effort, 1e-9)
	assert.InDelta(t, 15.46605672116104, p.HalfWidth, 1e-6)
	assert.Equal(t, 0.95, p.Confidence)
	assert.Equal(t, 140.0, est.Summary.HoursPerMonth)
	assert.NotEmpty(t, est.Narrative)

	rec = do(srv, http.MethodPost, "/estimate", `{"size": 3500, "confidence": 0.99, "hours_per_month": 160}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var est99 models.EstimateResponse
	decode(t, rec, &est99)
	assert.Greater(t, est99.Summary.Prediction.HalfWidth, p.HalfWidth)
	assert.Equal(t, 160.0, est99.Summary.HoursPerMonth)
}

func TestUpload_Errors(t *testing.T) {
	_, srv := newTestServer(t)

	rec := upload(t, srv, "datos.txt", tutorialCSV, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, srv, "bad.csv", "a,b\n1,x\n", map[string]string{"size_column": "a", "effort_column": "b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not numeric")

	rec = upload(t, srv, "missing.csv", tutorialCSV, map[string]string{"size_column": "loc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_SameNameKeepsBothFiles(t *testing.T) {
	h, srv := newTestServer(t)

	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)
	rec := upload(t, srv, "datos.csv", tutorialCSV+"P08,8000,410\n", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := os.ReadDir(h.Config.UploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	var st models.StatusResponse
	decode(t, do(srv, http.MethodGet, "/status", ""), &st)
	assert.Equal(t, "datos.csv", st.Name)
	assert.Equal(t, 8, st.Rows)
}

func TestEstimate_Errors(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(srv, http.MethodPost, "/estimate", `{"size": 3500}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var e models.ErrorResponse
	decode(t, rec, &e)
	assert.Equal(t, metrics.KindNoData, e.Kind)

	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)

	cases := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"BadJSON", `{`, http.StatusBadRequest, metrics.KindInvalid},
		{"MissingSize", `{"confidence": 0.9}`, http.StatusBadRequest, metrics.KindInvalid},
		{"ConfidenceOne", `{"size": 10, "confidence": 1}`, http.StatusBadRequest, metrics.KindInvalid},
		{"ConfidenceNegative", `{"size": 10, "confidence": -0.1}`, http.StatusBadRequest, metrics.KindInvalid},
		{"SizeOverflows", `{"size": 1e200}`, http.StatusBadRequest, metrics.KindInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(srv, http.MethodPost, "/estimate", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			var e models.ErrorResponse
			decode(t, rec, &e)
			assert.Equal(t, tc.kind, e.Kind)
		})
	}
}

func TestEstimate_DegenerateHistory(t *testing.T) {
	h, srv := newTestServer(t)
	h.State.SetHistory(&state.History{Source: "csv", Dataset: probe.Dataset{{Size: 1, Effort: 2}, {Size: 2, Effort: 4}}})

	rec := do(srv, http.MethodPost, "/estimate", `{"size": 3}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var e models.ErrorResponse
	decode(t, rec, &e)
	assert.Equal(t, metrics.KindDegenerate, e.Kind)
}

func TestDescribeAndRegression(t *testing.T) {
	_, srv := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)

	rec := do(srv, http.MethodGet, "/describe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var desc probe.Description
	decode(t, rec, &desc)
	assert.Equal(t, 7, desc.Size.Count)
	assert.InDelta(t, 236666.666667, desc.Covariance, 1e-3)

	rec = do(srv, http.MethodGet, "/regression", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reg models.RegressionResponse
	decode(t, rec, &reg)
	assert.InDelta(t, 0.0507142857142857, reg.Model.Slope, 1e-12)
	assert.Equal(t, 7, reg.SampleSize)
	assert.Len(t, reg.Plot.Fitted, 7)
	assert.Nil(t, reg.Plot.Prediction)
}

func TestGetPlot(t *testing.T) {
	_, srv := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)

	rec := do(srv, http.MethodGet, "/plot?size=289700&confidence=0.95", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pd report.PlotData
	decode(t, rec, &pd)
	require.NotNil(t, pd.Prediction)
	assert.Equal(t, 289700.0, pd.Prediction.X)
	assert.InDelta(t, 778.2338072270126, pd.ErrorBar, 1e-6)

	rec = do(srv, http.MethodGet, "/plot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/plot?size=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearDataset(t *testing.T) {
	_, srv := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)

	rec := do(srv, http.MethodDelete, "/dataset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(srv, http.MethodGet, "/describe", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)
	require.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/estimate", `{"size": 3500}`).Code)

	rec := do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "probe_estimates_total 1")
	assert.Contains(t, rec.Body.String(), `probe_datasets_loaded_total{source="csv"} 1`)
}

// fakeDataSource serves a fixed history without a database.
type fakeDataSource struct {
	connectErr error
	history    *state.History
	loadErr    error
	gotQuery   service.HistoryQuery
	closed     bool
}

func (f *fakeDataSource) Connect(ctx context.Context, cfg service.DataSourceConfig) error {
	return f.connectErr
}

func (f *fakeDataSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDataSource) ListTables(ctx context.Context) ([]string, error) {
	return []string{"projects"}, nil
}

func (f *fakeDataSource) LoadHistory(ctx context.Context, q service.HistoryQuery) (*state.History, error) {
	f.gotQuery = q
	return f.history, f.loadErr
}

func TestLoadFromDB(t *testing.T) {
	h, srv := newTestServer(t)
	ds, err := probe.NewDataset([]float64{1000, 2000, 3000, 4000}, []float64{50, 110, 150, 210})
	require.NoError(t, err)
	fake := &fakeDataSource{history: &state.History{
		Source: "postgres", Name: "projects", SizeColumn: "loc", EffortColumn: "hours",
		Dataset: ds, LoadedAt: time.Now(),
	}}
	h.NewDataSource = func(service.DataSourceConfig) (service.DataSource, error) { return fake, nil }

	rec := do(srv, http.MethodPost, "/db/load", `{"table":"projects","size_column":"loc","effort_column":"hours","id_column":"code"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var up models.UploadResponse
	decode(t, rec, &up)
	assert.Equal(t, "postgres", up.Source)
	assert.Equal(t, 4, up.Rows)
	assert.Equal(t, "code", fake.gotQuery.IDColumn)
	assert.True(t, fake.closed)
	assert.Equal(t, "projects", h.State.GetHistory().Name)
}

func TestLoadFromDB_Errors(t *testing.T) {
	h, srv := newTestServer(t)

	fake := &fakeDataSource{connectErr: errors.New("connection refused")}
	h.NewDataSource = func(service.DataSourceConfig) (service.DataSource, error) { return fake, nil }
	rec := do(srv, http.MethodPost, "/db/load", `{"table":"projects"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	fake = &fakeDataSource{loadErr: service.ErrUnknownTable}
	h.NewDataSource = func(service.DataSourceConfig) (service.DataSource, error) { return fake, nil }
	rec = do(srv, http.MethodPost, "/db/load", `{"table":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, h.State.GetHistory())

	rec = do(srv, http.MethodPost, "/db/load", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(probe.ErrInvalidParameter))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(probe.ErrDegenerateInput))
	assert.Equal(t, http.StatusBadRequest, statusFor(analysis.ErrBadValue))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk on fire")))
}

func TestGetPlot_HugeSize(t *testing.T) {
	_, srv := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, srv, "datos.csv", tutorialCSV, nil).Code)

	rec := do(srv, http.MethodGet, "/plot?size=1e200", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e models.ErrorResponse
	decode(t, rec, &e)
	assert.Equal(t, metrics.KindInvalid, e.Kind)
}

func TestWriteJSON_Unencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"upper": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var e models.ErrorResponse
	decode(t, rec, &e)
	assert.Equal(t, "failed to encode response", e.Error)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/report"
	"FlowTagger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeQuerier struct {
	tags  []storage.TagRow
	ports []storage.PortProtocolRow
	err   error
}

func (q *fakeQuerier) LatestTagCounts(ctx context.Context) ([]storage.TagRow, error) {
	return q.tags, q.err
}

func (q *fakeQuerier) LatestPortProtocolCounts(ctx context.Context) ([]storage.PortProtocolRow, error) {
	return q.ports, q.err
}

func sampleReport() *model.Report {
	r := &model.Report{Counts: model.NewCounts(), Lines: 3, Timestamp: "2024-05-04_10-30-00"}
	r.Tags["web"] = 2
	r.Tags[model.Untagged] = 1
	r.PortProtocols[model.NewLookupKey("443", "tcp")] = 2
	r.PortProtocols[model.NewLookupKey("8080", "tcp")] = 1
	return r
}

func serve(t *testing.T, h *APIHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Router(metrics.New().Registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLatestReport(t *testing.T) {
	h := &APIHandler{}
	assert.Equal(t, http.StatusNotFound, serve(t, h, "/api/v1/reports/latest").Code)

	h.SetLatest(sampleReport())

	rec := serve(t, h, "/api/v1/reports/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var s structpb.Struct
	require.NoError(t, protojson.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 2.0, s.Fields["tags"].GetStructValue().Fields["web"].GetNumberValue())

	rec = serve(t, h, "/api/v1/reports/latest/text")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.Format(sampleReport().Counts), rec.Body.String())
}

func TestHistory(t *testing.T) {
	h := &APIHandler{}
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, "/api/v1/tags").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, "/api/v1/ports").Code)

	h.querier = &fakeQuerier{
		tags:  []storage.TagRow{{Tag: "web", Count: 2}},
		ports: []storage.PortProtocolRow{{Port: "443", Protocol: "tcp", Count: 2}},
	}

	rec := serve(t, h, "/api/v1/tags")
	require.Equal(t, http.StatusOK, rec.Code)
	var tags []storage.TagRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tags))
	assert.Equal(t, []storage.TagRow{{Tag: "web", Count: 2}}, tags)

	rec = serve(t, h, "/api/v1/ports")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"port":"443","protocol":"tcp","count":2}]`, rec.Body.String())

	h.querier = &fakeQuerier{err: errors.New("connection refused")}
	assert.Equal(t, http.StatusInternalServerError, serve(t, h, "/api/v1/tags").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveReport(sampleReport())

	rec := httptest.NewRecorder()
	(&APIHandler{}).Router(m.Registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flowtagger_report_tag_count{tag="web"} 2`)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	(&APIHandler{}).Router(metrics.New().Registry).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tags", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

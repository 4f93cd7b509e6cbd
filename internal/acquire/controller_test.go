package acquire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/blob"
	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/fetcher"
	"github.com/estado-transparente/transparencia-cli/internal/registry"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var artifactCols = []string{
	"artifact_id", "source_id", "url", "captured_at", "content_digest",
	"mime_type", "size_bytes", "storage_kind", "storage_location",
	"parse_status", "parse_error",
}

func newTestController(t *testing.T, mock pgxmock.PgxPoolIface) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	c := NewController(
		registry.New(mock),
		registry.NewJobLog(mock),
		blob.NewFSStore(dir),
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
		time.Millisecond,
	)
	return c, dir
}

func TestAcquireURL_RegistersNewArtifact(t *testing.T) {
	body := []byte("entidad,anio,monto\nA,2024,1\n")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs(pgxmock.AnyArg(), "collector", "presupuesto_2024", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM artifacts WHERE content_digest").
		WithArgs(blob.Digest(body)).
		WillReturnRows(pgxmock.NewRows(artifactCols))
	mock.ExpectExec("INSERT INTO artifacts").
		WithArgs(pgxmock.AnyArg(), "presupuesto_2024", server.URL, pgxmock.AnyArg(),
			blob.Digest(body), "text/csv", int64(len(body)), "fs", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE job_runs").
		WithArgs(pgxmock.AnyArg(), "ok", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c, dir := newTestController(t, mock)
	res, err := c.AcquireURL(context.Background(), "presupuesto_2024", server.URL, Options{})
	require.NoError(t, err)
	assert.False(t, res.Deduped)
	assert.Equal(t, blob.Digest(body), res.Digest)
	assert.Equal(t, int64(len(body)), res.SizeBytes)

	stored, err := os.ReadFile(filepath.Join(dir, res.ArtifactID.String()+".raw"))
	require.NoError(t, err)
	assert.Equal(t, body, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireURL_DeduplicatesByDigest(t *testing.T) {
	body := []byte("same bytes as before")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	existingID := uuid.New()
	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs(pgxmock.AnyArg(), "collector", "gasto_2024", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM artifacts WHERE content_digest").
		WithArgs(blob.Digest(body)).
		WillReturnRows(pgxmock.NewRows(artifactCols).AddRow(
			existingID, "gasto_2024", server.URL,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), blob.Digest(body),
			"text/csv", int64(len(body)), "fs", "/data/raw/x.raw",
			"ok", nil,
		))
	mock.ExpectExec("UPDATE job_runs").
		WithArgs(pgxmock.AnyArg(), "ok", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c, dir := newTestController(t, mock)
	res, err := c.AcquireURL(context.Background(), "gasto_2024", server.URL, Options{})
	require.NoError(t, err)
	assert.True(t, res.Deduped)
	assert.Equal(t, existingID, res.ArtifactID)

	// No new blob was written.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireURL_DryRun(t *testing.T) {
	body := []byte("dry run bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Only the dedup lookup touches the store.
	mock.ExpectQuery("SELECT (.+) FROM artifacts WHERE content_digest").
		WithArgs(blob.Digest(body)).
		WillReturnRows(pgxmock.NewRows(artifactCols))

	c, dir := newTestController(t, mock)
	res, err := c.AcquireURL(context.Background(), "gasto_2024", server.URL, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, uuid.Nil, res.ArtifactID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireURL_FetchFailureClosesRunAsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs(pgxmock.AnyArg(), "collector", "gasto_2024", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE job_runs").
		WithArgs(pgxmock.AnyArg(), "failed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c, _ := newTestController(t, mock)
	_, err = c.AcquireURL(context.Background(), "gasto_2024", server.URL, Options{})
	require.Error(t, err)
	assert.Equal(t, fault.KindNetwork, fault.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireBatch(t *testing.T) {
	body := []byte("batch body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	enabled := true
	m := &Manifest{
		Version: 1,
		Sources: []ManifestSource{
			{ID: "gasto_2024", Name: "Gasto", URLs: []ManifestURL{{Year: 2024, URL: server.URL}}, Enabled: &enabled},
			{ID: "con_llave", Name: "Con llave", RequiresAPIKey: true, URLs: []ManifestURL{{URL: server.URL}}},
		},
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// One audit run per source: the batch run is the only job_runs write.
	mock.ExpectExec("INSERT INTO job_runs").
		WithArgs(pgxmock.AnyArg(), "collector_batch", "gasto_2024", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM artifacts WHERE content_digest").
		WithArgs(blob.Digest(body)).
		WillReturnRows(pgxmock.NewRows(artifactCols))
	mock.ExpectExec("INSERT INTO artifacts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE job_runs").
		WithArgs(pgxmock.AnyArg(), "ok", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c, _ := newTestController(t, mock)
	summary, err := c.AcquireBatch(context.Background(), m, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Acquired)
	assert.Equal(t, 1, summary.Skipped) // the api-key source
	assert.Equal(t, 0, summary.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireBatch_YearFilter(t *testing.T) {
	body := []byte("only 2023")
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(body)
	}))
	defer server.Close()

	m := &Manifest{
		Version: 1,
		Sources: []ManifestSource{
			{ID: "gasto", URLs: []ManifestURL{
				{Year: 2023, URL: server.URL + "/2023"},
				{Year: 2024, URL: server.URL + "/2024"},
			}},
		},
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM artifacts WHERE content_digest").
		WithArgs(blob.Digest(body)).
		WillReturnRows(pgxmock.NewRows(artifactCols))

	c, _ := newTestController(t, mock)
	summary, err := c.AcquireBatch(context.Background(), m, BatchOptions{Year: 2023, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 0, summary.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// internal/functions/digest/handler_test.go
package digest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"congregation-functions/internal/common/config"
	"congregation-functions/internal/common/database"
	commonhttp "congregation-functions/internal/common/http"
	"congregation-functions/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

// newChainFixture wires a real handler behind a test server and points the
// continuation client back at it, so full pages actually chain over HTTP.
func newChainFixture(t *testing.T, batchSize int) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	mr := miniredis.RunT(t)
	rdb, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	assert.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	cfg := &Config{
		BatchSize:        batchSize,
		MaxIterations:    100,
		MaxExecutionTime: 5 * time.Minute,
		ActivityWindow:   24 * time.Hour,
		BoardsURL:        "https://congregation.example/boards",
	}
	log := logger.NewTestLogger(t)
	svc := NewService(cfg, NewStore(sqlDB), NewCursorStore(rdb), &mockAccessChecker{}, &mockDispatcher{}, commonhttp.NewClient(5*time.Second), log)

	server := httptest.NewServer(NewHandler(svc, log))
	t.Cleanup(server.Close)
	cfg.ContinuationURL = server.URL
	return server, mock
}

func postDigest(t *testing.T, url string, body []byte) (*http.Response, Output) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	assert.NoError(t, err)
	defer resp.Body.Close()

	var out Output
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandler_ChainWalksEveryPage(t *testing.T) {
	server, mock := newChainFixture(t, 1)

	mock.ExpectQuery("FROM members").
		WithArgs(1, 0).
		WillReturnRows(memberRows().AddRow("m1", "Ruth", "Okafor", "ruth@example.org"))
	mock.ExpectQuery("FROM boards").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery("FROM members").
		WithArgs(1, 1).
		WillReturnRows(memberRows().AddRow("m2", "Joel", "Mbeki", "joel@example.org"))
	mock.ExpectQuery("FROM boards").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery("FROM members").
		WithArgs(1, 2).
		WillReturnRows(memberRows())

	resp, out := postDigest(t, server.URL, []byte(`{}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Processed)

	assert.NotNil(t, out.NextBatch)
	assert.NotNil(t, out.NextBatch.NextBatch)
	assert.Equal(t, "All members processed", out.NextBatch.NextBatch.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_EmptyBodyStartsAFreshRun(t *testing.T) {
	server, mock := newChainFixture(t, 10)

	mock.ExpectQuery("FROM members").
		WithArgs(10, 0).
		WillReturnRows(memberRows())

	resp, out := postDigest(t, server.URL, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_MalformedBodyIs400(t *testing.T) {
	server, _ := newChainFixture(t, 10)

	resp, out := postDigest(t, server.URL, []byte(`{"offset": "ten"}`))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
}

func TestHandler_GetIsRejected(t *testing.T) {
	server, _ := newChainFixture(t, 10)

	resp, err := http.Get(server.URL)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_BatchFailureIsStill200(t *testing.T) {
	server, mock := newChainFixture(t, 10)

	mock.ExpectQuery("FROM members").
		WillReturnError(assert.AnError)

	resp, out := postDigest(t, server.URL, []byte(`{}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
}

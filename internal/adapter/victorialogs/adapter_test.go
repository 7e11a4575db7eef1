package victorialogs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inquest/internal/adapter"
	"inquest/internal/kb"
	"inquest/internal/models"
)

func testWindow() models.TimeRange {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return models.TimeRange{Start: start, End: start.Add(30 * time.Minute)}
}

func logServer(t *testing.T, lines []string, gotQuery *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/select/logsql/query", r.URL.Path)
		require.NoError(t, r.ParseForm())
		*gotQuery = r.Form.Get("query")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(kb.ProviderInstance{
		ID:       "vl-prod",
		Category: "log_store",
		Type:     "victorialogs",
		Config:   map[string]interface{}{},
	}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestNewResolvesURLFromEnv(t *testing.T) {
	t.Setenv("VL_TEST_URL", "http://vl.internal:9428")
	a, err := New(kb.ProviderInstance{
		ID:     "vl-prod",
		Config: map[string]interface{}{"base_url_env": "VL_TEST_URL"},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "vl-prod", a.Provider())
}

func TestQuerySamples(t *testing.T) {
	var gotQuery string
	srv := logServer(t, []string{
		`{"_time":"2026-03-14T10:05:00Z","_msg":"request failed","error.type":"NullPointerException"}`,
		`{"_time":"2026-03-14T10:06:00Z","_msg":"request failed","error.type":"NullPointerException"}`,
	}, &gotQuery)
	defer srv.Close()

	a, err := New(kb.ProviderInstance{
		ID:     "vl-prod",
		Config: map[string]interface{}{"base_url": srv.URL},
	}, 5*time.Second)
	require.NoError(t, err)

	res, err := a.Query(context.Background(), adapter.Request{
		Subject:   "payments-api",
		Intent:    adapter.IntentSamples,
		TimeRange: testWindow(),
		Limit:     40,
	})
	require.NoError(t, err)

	assert.Equal(t, adapter.CapLogStore, res.Capability)
	assert.Equal(t, models.KindLog, res.Kind)
	assert.Contains(t, gotQuery, `service:"payments-api"`)
	assert.Contains(t, gotQuery, "_time:[")
	require.Len(t, res.Records, 2)
	assert.Equal(t, "request failed", res.Records[0].Message)
	assert.Equal(t, "NullPointerException", res.Records[0].Signature)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC), res.Records[0].Timestamp)
	assert.Equal(t, res.Query, gotQuery)
}

func TestQuerySignatureCounts(t *testing.T) {
	var gotQuery string
	srv := logServer(t, []string{
		`{"error.type":"NullPointerException","hits":"120"}`,
		`{"error.type":"TimeoutError","hits":"7"}`,
	}, &gotQuery)
	defer srv.Close()

	a, err := New(kb.ProviderInstance{
		ID:     "vl-prod",
		Config: map[string]interface{}{"base_url": srv.URL},
	}, 5*time.Second)
	require.NoError(t, err)

	res, err := a.Query(context.Background(), adapter.Request{
		Subject:   "payments-api",
		Intent:    adapter.IntentSignatureCounts,
		TimeRange: testWindow(),
		Limit:     10,
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "NullPointerException", res.Records[0].Signature)
	assert.Equal(t, "TimeoutError", res.Records[1].Signature)
}

func TestQueryRejectsUnknownIntent(t *testing.T) {
	a := &LogStore{providerID: "vl-prod", client: NewClient("http://127.0.0.1:1", "", time.Second)}
	_, err := a.Query(context.Background(), adapter.Request{Intent: "metadata"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intent")
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/config"
	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/editor"
	"github.com/matthewbaird/adops/internal/taxonomy"
)

func newTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	cfg := config.Config{
		DatabaseURL:        ":memory:",
		CollationLocale:    "pt-BR",
		CatalogCacheTTL:    time.Minute,
		SessionIdleTimeout: time.Hour,
		SessionMaxAge:      time.Hour,
	}
	app, err := NewApp(ctx, cfg, ctxlog.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)

	f, err := catalog.DefaultFixture()
	require.NoError(t, err)
	require.NoError(t, app.Seed(ctx, f))
	app.Start(ctx)

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		require.NoError(t, app.Close())
	})
	return app, srv
}

func do(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	_, srv := newTestApp(t)
	status, body := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCatalogRoutes(t *testing.T) {
	_, srv := newTestApp(t)

	status, body := do(t, http.MethodGet, srv.URL+"/api/catalog/brands", nil)
	require.Equal(t, http.StatusOK, status)
	var brands struct {
		Items []struct{ ID, Name string } `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &brands))
	assert.Len(t, brands.Items, 3)

	status, body = do(t, http.MethodGet, srv.URL+"/api/catalog/brands/brand-orbit/accounts", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "acc-orbit-meta-1")

	status, _ = do(t, http.MethodGet, srv.URL+"/api/catalog/platforms", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestEditorLifecycle(t *testing.T) {
	app, srv := newTestApp(t)
	ctx := context.Background()

	status, body := do(t, http.MethodPost, srv.URL+"/api/editor/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	var view editor.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, editor.ModeNew, view.Mode)

	sess, err := app.Sessions.Get(view.ID)
	require.NoError(t, err)
	require.NoError(t, sess.SetVisible(ctx, taxonomy.Brand, true))
	require.NoError(t, sess.SetVisible(ctx, taxonomy.Platform, true))
	require.NoError(t, sess.SetValue(ctx, taxonomy.Brand, ptr("brand-orbit")))
	require.NoError(t, sess.SetValue(ctx, taxonomy.Platform, ptr("meta")))

	status, body = do(t, http.MethodGet, srv.URL+"/api/editor/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &view))
	account := view.Fields[2]
	require.Equal(t, taxonomy.Account, account.Key)
	require.NotNil(t, account.Value)
	assert.Equal(t, "acc-orbit-meta-1", *account.Value, "pt-BR collation picks Institucional over Varejo")

	submitURL := srv.URL + "/api/editor/sessions/" + view.ID + "/submit"
	status, body = do(t, http.MethodPost, submitURL, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.JSONEq(t, `{"error":"validation failed: details.description is required","code":"VALIDATION_ERROR","field":"details.description"}`, string(body))

	status, body = do(t, http.MethodPost, submitURL, map[string]any{
		"details": editor.Details{Description: "Q3 launch", Owner: "ana"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var rcpt editor.Receipt
	require.NoError(t, json.Unmarshal(body, &rcpt))
	assert.Equal(t, view.CampaignID, rcpt.CampaignID)

	status, _ = do(t, http.MethodGet, srv.URL+"/api/editor/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Reopen for editing: the stored taxonomy is rehydrated.
	status, body = do(t, http.MethodPost, srv.URL+"/api/editor/sessions", map[string]string{"campaign_id": rcpt.CampaignID})
	require.Equal(t, http.StatusCreated, status, string(body))
	var edit editor.View
	require.NoError(t, json.Unmarshal(body, &edit))
	assert.Equal(t, editor.ModeEdit, edit.Mode)
	require.NotNil(t, edit.Fields[2].Value)
	assert.Equal(t, "acc-orbit-meta-1", *edit.Fields[2].Value)

	status, _ = do(t, http.MethodDelete, srv.URL+"/api/editor/sessions/"+edit.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, http.MethodDelete, srv.URL+"/api/editor/sessions/"+edit.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodGet, srv.URL+"/api/campaigns/"+rcpt.CampaignID+"/activity", nil)
	require.Equal(t, http.StatusOK, status)
	var history struct {
		Activities []struct {
			EventType string `json:"event_type"`
		} `json:"activities"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Equal(t, 3, history.TotalCount, "submitted, edit opened, edit discarded")
}

func TestOpenUnknownCampaign(t *testing.T) {
	_, srv := newTestApp(t)
	status, body := do(t, http.MethodPost, srv.URL+"/api/editor/sessions", map[string]string{"campaign_id": "nope"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), `"code":"NOT_FOUND"`)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestApp(t)
	do(t, http.MethodGet, srv.URL+"/api/catalog/brands", nil)
	do(t, http.MethodGet, srv.URL+"/api/catalog/brands", nil)

	status, body := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `adops_catalog_cache_lookups_total{kind="brands",result="hit"} 1`)
}

func TestNewApp_BadLocale(t *testing.T) {
	_, err := NewApp(context.Background(), config.Config{CollationLocale: "not a locale!", DatabaseURL: ":memory:"}, ctxlog.Discard(), prometheus.NewRegistry())
	assert.Error(t, err)
}

func ptr(s string) *string { return &s }

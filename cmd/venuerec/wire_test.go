package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/venuerec/config"
)

func TestBuildInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Recommend.TrainOnStartup = false

	a, err := build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.handler.Indexer, "no catalog without postgres")
	assert.Empty(t, a.handler.Checks)

	w := httptest.NewRecorder()
	a.handler.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 没有配置编码服务时画像推荐不可用
	w = httptest.NewRecorder()
	a.handler.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recommend/hybrid?user_id=u1&lat=37.5&lng=127", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBuildFilters(t *testing.T) {
	rc := config.Default().Recommend
	filters, err := buildFilters(rc)
	require.NoError(t, err)
	assert.Empty(t, filters)

	rc.Blocklist = []string{"b1"}
	rc.FilterExpr = "item.score < 0.1"
	filters, err = buildFilters(rc)
	require.NoError(t, err)
	assert.Len(t, filters, 2)

	rc.FilterExpr = "item.score <"
	_, err = buildFilters(rc)
	assert.Error(t, err)
}

func TestLoadPipeline(t *testing.T) {
	pl, err := loadPipeline("", config.Deps{})
	require.NoError(t, err)
	assert.Nil(t, pl)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pipeline:\n  name: x\n  nodes:\n    - type: rank.lr\n"), 0o600))
	_, err = loadPipeline(bad, config.Deps{})
	assert.ErrorContains(t, err, "unsupported node type")

	_, err = loadPipeline(filepath.Join(dir, "missing.yaml"), config.Deps{})
	assert.Error(t, err)
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/venuerec/core"
)

// appendNode 追加一个候选，用来观察执行顺序。
type appendNode struct {
	id  string
	err error
}

func (n appendNode) Name() string { return "test." + n.id }
func (n appendNode) Kind() Kind   { return KindRank }
func (n appendNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if n.err != nil {
		return nil, n.err
	}
	return append(items, core.NewItem(n.id)), nil
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestPipelineRunOrderAndObserver(t *testing.T) {
	var observed []string
	p := &Pipeline{
		Nodes: []Node{appendNode{id: "a"}, appendNode{id: "b"}, appendNode{id: "c"}},
		Observer: func(node Node, _ time.Duration, in, out int, err error) {
			assert.Equal(t, in+1, out)
			assert.NoError(t, err)
			observed = append(observed, node.Name())
		},
	}

	items, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(items))
	assert.Equal(t, []string{"test.a", "test.b", "test.c"}, observed)
}

func TestPipelineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	p := &Pipeline{Nodes: []Node{appendNode{id: "a"}, appendNode{id: "b", err: boom}, appendNode{id: "c"}}}

	_, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test.b")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "p.yaml")
	jsonPath := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
pipeline:
  name: demo
  nodes:
    - type: test.a
    - type: test.b
      config:
        n: 3
`), 0o600))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"pipeline":{"name":"demo","nodes":[{"type":"test.a"}]}}`), 0o600))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Pipeline.Name)
	assert.Equal(t, []string{"test.a", "test.b"}, cfg.Types())
	assert.Equal(t, 3, cfg.Pipeline.Nodes[1].Config["n"])

	cfg, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"test.a"}, cfg.Types())

	_, err = Load(filepath.Join(dir, "p.toml"))
	assert.Error(t, err)
}

func TestBuildPipeline(t *testing.T) {
	f := NewNodeFactory()
	f.Register("test.a", func(map[string]any) (Node, error) { return appendNode{id: "a"}, nil })
	f.Register("test.broken", func(map[string]any) (Node, error) { return nil, errors.New("missing field") })

	cfg, err := ParseYAML([]byte("pipeline:\n  nodes:\n    - type: test.a\n    - type: test.a\n"))
	require.NoError(t, err)
	p, err := cfg.BuildPipeline(f)
	require.NoError(t, err)
	assert.Len(t, p.Nodes, 2)

	cfg, err = ParseYAML([]byte("pipeline:\n  nodes:\n    - type: test.a\n    - type: test.broken\n"))
	require.NoError(t, err)
	_, err = cfg.BuildPipeline(f)
	assert.ErrorContains(t, err, "node #1 (test.broken)")

	cfg, err = ParseYAML([]byte("pipeline:\n  nodes:\n    - type: test.unknown\n"))
	require.NoError(t, err)
	_, err = cfg.BuildPipeline(f)
	assert.ErrorContains(t, err, "unknown node type")

	_, err = (&Config{}).BuildPipeline(f)
	assert.Error(t, err)
}

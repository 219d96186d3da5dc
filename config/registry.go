package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/venuerec/pipeline"
)

// 内置 Node 由 NewFactory 注册；额外的 Node 类型可在 init 中调用 Register，
// 之后 NewFactory 返回的工厂都会包含它们。

var (
	extraBuilders   = make(map[string]pipeline.NodeBuilder)
	extraBuildersMu sync.RWMutex
)

// Register 注册一种额外 Node 的构建逻辑。与内置类型同名时以内置为准。
func Register(typeName string, builder pipeline.NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	extraBuildersMu.Lock()
	defer extraBuildersMu.Unlock()
	extraBuilders[typeName] = builder
}

func registered() map[string]pipeline.NodeBuilder {
	extraBuildersMu.RLock()
	defer extraBuildersMu.RUnlock()
	out := make(map[string]pipeline.NodeBuilder, len(extraBuilders))
	for k, v := range extraBuilders {
		out[k] = v
	}
	return out
}

// SupportedTypes 返回当前支持的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	seen := make(map[string]struct{})
	types := make([]string, 0, len(builtinTypes))
	for _, t := range builtinTypes {
		seen[t] = struct{}{}
		types = append(types, t)
	}
	for t := range registered() {
		if _, ok := seen[t]; !ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// ValidatePipelineConfig 校验 pipeline 配置中所有 node 类型均受支持；若有未支持类型则返回包含已支持列表的错误。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	supported := SupportedTypes()
	for _, nc := range cfg.Pipeline.Nodes {
		i := sort.SearchStrings(supported, nc.Type)
		if i >= len(supported) || supported[i] != nc.Type {
			return fmt.Errorf("unsupported node type %q (supported: %v)", nc.Type, supported)
		}
	}
	return nil
}

// Package dsl 提供基于 CEL 的候选过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/venuerec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，可被多个 goroutine 复用。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：item.score > 0.3 / item.features.als >= 0.1
//   - 标签：label.recall_source.contains("content")
//   - 门店：item.store.distance_m < 500.0
//   - 请求：rctx.radius_km <= 2.0
//
// 不存在的 key 会导致求值错误，请用 has(item.features.als) 检查存在性。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，结果类型必须是 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	switch out := ast.OutputType().String(); out {
	case "bool", "dyn":
	default:
		return nil, fmt.Errorf("expression %q must return bool, got %s", expr, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Eval 对一个候选求值。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = v.Value
	}

	features := make(map[string]any, len(it.Features))
	for k, v := range it.Features {
		features[k] = v
	}

	item := map[string]any{
		"id":       it.ID,
		"score":    it.Score,
		"features": features,
	}
	if loc, ok := it.Meta["store"].(core.StoreLocation); ok {
		item["store"] = map[string]any{
			"id":         loc.StoreID,
			"name":       loc.Name,
			"distance_m": loc.DistanceMeters,
		}
	}

	req := map[string]any{}
	if rctx != nil {
		req = map[string]any{
			"user_id":   rctx.UserID,
			"lat":       rctx.Lat,
			"lng":       rctx.Lng,
			"radius_km": rctx.RadiusKm,
			"top_k":     int64(rctx.TopK),
		}
	}

	return map[string]any{
		"item":  item,
		"label": labels,
		"rctx":  req,
	}
}

package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/filter"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/pkg/conv"
	"github.com/rushteam/venuerec/rank"
	"github.com/rushteam/venuerec/recall"
	"github.com/rushteam/venuerec/rerank"
)

// Deps 是内置 Node 构建时需要注入的运行期依赖。
type Deps struct {
	ALS     *recall.ALSRecall
	Vectors core.VectorService
	Geo     core.GeoStore
	Logger  zerolog.Logger
}

// NewFactory 返回包含所有内置 Node 以及通过 Register 注册的 Node 的工厂。
func NewFactory(deps Deps) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()
	for typeName, builder := range registered() {
		factory.Register(typeName, builder)
	}

	b := &builders{deps: deps}

	// 注册 Recall Nodes
	factory.Register("recall.fanout", b.fanout)

	// 注册 Rank Nodes
	factory.Register("rank.hybrid", b.hybrid)

	// 注册 Filter Nodes
	factory.Register("filter", b.filter)

	// 注册 ReRank Nodes
	factory.Register("rerank.geo", b.geo)
	factory.Register("rerank.topn", b.topN)

	return factory
}

var builtinTypes = []string{"filter", "rank.hybrid", "recall.fanout", "rerank.geo", "rerank.topn"}

type builders struct {
	deps Deps
}

func (b *builders) fanout(config map[string]any) (pipeline.Node, error) {
	sourcesConfig, ok := config["sources"].([]any)
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}

	multiplier := int(conv.ConfigGetInt64(config, "candidate_multiplier", 0))
	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]any)
		if !ok {
			continue
		}
		switch sourceType := conv.ConfigGet(sourceMap, "type", ""); sourceType {
		case "als":
			if b.deps.ALS == nil {
				return nil, fmt.Errorf("als source requires a model")
			}
			sources = append(sources, b.deps.ALS)
		case "content":
			if b.deps.Vectors == nil {
				return nil, fmt.Errorf("content source requires a vector service")
			}
			sources = append(sources, &recall.ContentRecall{
				Vectors:             b.deps.Vectors,
				Collection:          conv.ConfigGet(sourceMap, "collection", "brand"),
				CandidateMultiplier: multiplier,
			})
		default:
			return nil, fmt.Errorf("unknown source type: %s", sourceType)
		}
	}

	timeout, err := conv.ConfigGetDuration(config, "timeout", 0)
	if err != nil {
		return nil, err
	}
	log := b.deps.Logger
	return &recall.Fanout{
		Sources:       sources,
		Dedup:         conv.ConfigGet(config, "dedup", true),
		Timeout:       timeout,
		MaxConcurrent: int(conv.ConfigGetInt64(config, "max_concurrent", 0)),
		MergeStrategy: conv.ConfigGet(config, "merge_strategy", "first"),
		FailFast:      conv.ConfigGet(config, "fail_fast", true),
		OnError: func(source string, err error) {
			log.Warn().Err(err).Str("source", source).Msg("recall source failed")
		},
	}, nil
}

func (b *builders) hybrid(config map[string]any) (pipeline.Node, error) {
	def := rank.DefaultWeights()
	w := rank.Weights{
		CF:      conv.ConfigGetFloat64(config, "cf_weight", def.CF),
		Content: conv.ConfigGetFloat64(config, "content_weight", def.Content),
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &rank.HybridNode{Weights: w, TopK: int(conv.ConfigGetInt64(config, "top_k", 0))}, nil
}

func (b *builders) filter(config map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := config["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		switch filterType := conv.ConfigGet(filterMap, "type", ""); filterType {
		case "blocklist":
			filters = append(filters, filter.NewBlocklistFilter(conv.SliceAnyToString(filterMap["brand_ids"])))
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}

	log := b.deps.Logger
	return &filter.FilterNode{
		Filters: filters,
		OnError: func(name string, item *core.Item, err error) {
			log.Warn().Err(err).Str("filter", name).Str("item_id", item.ID).Msg("filter failed, item kept")
		},
	}, nil
}

func (b *builders) geo(config map[string]any) (pipeline.Node, error) {
	if b.deps.Geo == nil {
		return nil, fmt.Errorf("rerank.geo requires a geo store")
	}
	timeout, err := conv.ConfigGetDuration(config, "timeout", 0)
	if err != nil {
		return nil, err
	}
	return &rerank.GeoResolver{Store: b.deps.Geo, Timeout: timeout}, nil
}

func (b *builders) topN(config map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(config, "n", 0))}, nil
}

package utils

import "strings"

// ValueSep 同名 Label 多次写入时值之间的分隔符。
const ValueSep = "|"

// Label 随候选或请求透传的标注，例如 recall_source、als_generation、cold_start。
// 用于解释一条推荐来自哪一路信号，以及由哪一代模型打分。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / rank / rerank / filter
}

// Values 按写入顺序返回累积的值。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, ValueSep)
}

// First 返回最早写入的值。
func (l Label) First() string {
	first, _, _ := strings.Cut(l.Value, ValueSep)
	return first
}

// MergeLabel 合并同名 Label：Value 用 '|' 累积，Source 用 ',' 累积，空值不参与。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := Label{Value: existing.Value + ValueSep + incoming.Value}
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "" || incoming.Source == existing.Source:
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

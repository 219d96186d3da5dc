package core

import "sort"

// ScoreMap itemId -> score，单路信号的输出。
type ScoreMap map[string]float64

// CandidateScore 融合后的候选。
type CandidateScore struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// RecommendedStore 最终返回给调用方的一条门店推荐。
type RecommendedStore struct {
	StoreID        string  `json:"store_id"`
	BrandID        string  `json:"brand_id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Score          float64 `json:"score"`
	DistanceMeters float64 `json:"distance_m"`
}

// RecommendationResult 一次推荐的结果。
type RecommendationResult struct {
	UserID     string             `json:"user_id"`
	Items      []RecommendedStore `json:"items"`
	Generation int64              `json:"generation"`
	CacheHit   bool               `json:"-"`
}

// Before 全局统一的排序规则：分数降序，分数相同时 ID 升序。
func Before(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

// SortCandidates 按 Before 原地排序。
func SortCandidates(s []CandidateScore) {
	sort.Slice(s, func(i, j int) bool {
		return Before(s[i].Score, s[i].ItemID, s[j].Score, s[j].ItemID)
	})
}

// SortItems 按 Item.Score 与 Before 原地排序。
func SortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return Before(items[i].Score, items[i].ID, items[j].Score, items[j].ID)
	})
}

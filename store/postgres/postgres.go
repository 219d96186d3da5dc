package postgres

import "github.com/rushteam/venuerec/core"

var (
	_ core.EventLogSource = (*EventSource)(nil)
	_ core.BrandResolver  = (*EventSource)(nil)
	_ core.GeoStore       = (*GeoStore)(nil)
	_ core.EmbeddingStore = (*EmbeddingStore)(nil)
	_ core.ProfileSource  = (*ProfileSource)(nil)
	_ core.BrandCatalog   = (*BrandCatalog)(nil)
	_ core.StoreCatalog   = (*StoreCatalog)(nil)
)

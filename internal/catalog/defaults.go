package catalog

import (
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

var (
	categoryFigures = models.LocalizedText{EN: "Figures", ZH: "公仔"}
	categoryBlind   = models.LocalizedText{EN: "Blind Boxes", ZH: "盲盒"}
	categoryPlush   = models.LocalizedText{EN: "Plush", ZH: "毛绒玩具"}
)

var defaultProducts = []models.Product{
	{
		ID:       1,
		Name:     models.LocalizedText{EN: "Labubu Vinyl Face Figure", ZH: "Labubu 搪胶脸公仔"},
		Image:    "/images/products/labubu-vinyl.jpg",
		Price:    decimal.RequireFromString("19.99"),
		Category: categoryFigures,
		Tag:      models.TagHot,
	},
	{
		ID:       2,
		Name:     models.LocalizedText{EN: "Skullpanda Night Series Blind Box", ZH: "Skullpanda 夜之城系列盲盒"},
		Image:    "/images/products/skullpanda-night.jpg",
		Price:    decimal.RequireFromString("12.99"),
		Category: categoryBlind,
		Tag:      models.TagNew,
	},
	{
		ID:       3,
		Name:     models.LocalizedText{EN: "Crybaby Sad Club Plush", ZH: "Crybaby 悲伤俱乐部毛绒"},
		Image:    "/images/products/crybaby-plush.jpg",
		Price:    decimal.RequireFromString("29.50"),
		Category: categoryPlush,
		Tag:      models.TagLimited,
	},
	{
		ID:       4,
		Name:     models.LocalizedText{EN: "Molly Career Series Blind Box", ZH: "Molly 职业系列盲盒"},
		Image:    "/images/products/molly-career.jpg",
		Price:    decimal.RequireFromString("11.99"),
		Category: categoryBlind,
		Tag:      models.TagHot,
	},
	{
		ID:       5,
		Name:     models.LocalizedText{EN: "Dimoo Space Travel Figure", ZH: "Dimoo 太空旅行公仔"},
		Image:    "/images/products/dimoo-space.jpg",
		Price:    decimal.RequireFromString("24.00"),
		Category: categoryFigures,
	},
}

// Defaults returns the built-in products, filtered by tag and capped at limit
// when they are set.
func Defaults(tag string, limit int) []models.Product {
	out := make([]models.Product, 0, len(defaultProducts))
	for _, p := range defaultProducts {
		if tag != "" && p.Tag != tag {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

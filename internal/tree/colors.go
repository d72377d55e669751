package tree

import "github.com/hpungsan/grove/internal/domain"

// OtherCategory buckets relationships that have no category.
const OtherCategory = "Other"

var categoryColors = map[string]string{
	"friend":       "#1abc9c",
	"family":       "#9b59b6",
	"romantic":     "#e74c3c",
	"business":     "#3498db",
	"mentor":       "#f1c40f",
	"mentee":       "#f39c12",
	"acquaintance": "#bdc3c7",
	"other":        "#7f8c8d",
}

// Color returns the display colour for a category. Unknown categories
// share the "Other" colour.
func Color(category string) string {
	if c, ok := categoryColors[domain.NormalizeCategory(category)]; ok {
		return c
	}
	return categoryColors["other"]
}

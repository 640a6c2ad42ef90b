package search

import (
	"strconv"
	"strings"
)

// FallbackText is embedded when a request carries neither text nor filters.
const FallbackText = "proyectos inmobiliarios"

// CompositeText builds the string embedded for retrieval: the free text
// followed by human-readable hints for each supplied filter.
func CompositeText(text string, f Filters) string {
	var parts []string
	if text = strings.TrimSpace(text); text != "" {
		parts = append(parts, text)
	}
	if f.HasLocation() {
		parts = append(parts, "ubicado en "+f.Location)
	}
	if f.PropertyType != "" {
		parts = append(parts, "tipo "+f.PropertyType)
	}
	if f.HasAmenities() {
		parts = append(parts, "con amenities: "+strings.Join(f.Amenities, ", "))
	}
	switch {
	case f.Price.Min != nil && f.Price.Max != nil:
		parts = append(parts, "precio entre "+formatAmount(*f.Price.Min)+" y "+formatAmount(*f.Price.Max))
	case f.Price.Min != nil:
		parts = append(parts, "precio desde "+formatAmount(*f.Price.Min))
	case f.Price.Max != nil:
		parts = append(parts, "precio hasta "+formatAmount(*f.Price.Max))
	}
	if len(parts) == 0 {
		return FallbackText
	}
	return strings.Join(parts, " ")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

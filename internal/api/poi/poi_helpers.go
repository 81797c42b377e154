package poi

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.0

const (
	MinRadiusMeters       = 200
	MaxNearbyRadiusMeters = 5000
	MaxEnrichRadiusMeters = 4000
	radiusBucketMeters    = 250
	maxCategoriesPerQuery = 3
	maxNearbyNames        = 8
	maxPlacesPerCandidate = 3
)

// Filter is an OSM tag filter such as amenity=cafe.
type Filter struct {
	Key   string
	Value string
}

func (f Filter) String() string { return f.Key + "=" + f.Value }

// Matches reports whether an element's tags satisfy the filter.
func (f Filter) Matches(tags map[string]string) bool {
	return tags[f.Key] == f.Value
}

// tagFilters maps internal activity tags to OSM categories.
var tagFilters = map[string]Filter{
	"cafe":       {"amenity", "cafe"},
	"museum":     {"tourism", "museum"},
	"cinema":     {"amenity", "cinema"},
	"boardgame":  {"shop", "games"},
	"spa":        {"amenity", "public_bath"},
	"arcade":     {"leisure", "amusement_arcade"},
	"aquarium":   {"tourism", "aquarium"},
	"mall":       {"shop", "mall"},
	"sauna":      {"leisure", "sauna"},
	"bookstore":  {"shop", "books"},
	"bouldering": {"sport", "climbing"},
	"trampoline": {"leisure", "trampoline_park"},
	"karaoke":    {"amenity", "karaoke_box"},
}

// FilterFor returns the OSM filter for an internal tag.
func FilterFor(tag string) (Filter, bool) {
	f, ok := tagFilters[tag]
	return f, ok
}

// Category is a selected tag with its OSM filter.
type Category struct {
	Tag    string
	Filter Filter
}

// SelectCategories picks up to three mappable tags in input order, skipping duplicates.
func SelectCategories(tags []string) []Category {
	out := make([]Category, 0, maxCategoriesPerQuery)
	for _, t := range tags {
		if len(out) == maxCategoriesPerQuery {
			break
		}
		f, ok := tagFilters[t]
		if !ok || slices.ContainsFunc(out, func(c Category) bool { return c.Tag == t }) {
			continue
		}
		out = append(out, Category{Tag: t, Filter: f})
	}
	return out
}

// ClampRadius bounds meters to [MinRadiusMeters, upper].
func ClampRadius(meters, upper int) int {
	return max(MinRadiusMeters, min(meters, upper))
}

// RadiusBucket rounds meters to the nearest 250 m so nearby radii share cache entries.
func RadiusBucket(meters int) int {
	b := int(math.Round(float64(meters)/radiusBucketMeters)) * radiusBucketMeters
	return max(b, radiusBucketMeters)
}

// CacheKey identifies a query by 3-decimal coordinate, radius bucket and sorted tags.
func CacheKey(lat, lon float64, radiusMeters int, categories []Category) string {
	tags := make([]string, len(categories))
	for i, c := range categories {
		tags[i] = c.Tag
	}
	slices.Sort(tags)
	return fmt.Sprintf("%.3f:%.3f:%d:%s", lat, lon, RadiusBucket(radiusMeters), strings.Join(tags, ","))
}

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusKm
}

func osmURL(elementType string, id int64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/%s/%d", elementType, id)
}

// displayName prefers name:<lang> over name.
func displayName(tags map[string]string, lang string) string {
	if lang != "" {
		if n := strings.TrimSpace(tags["name:"+lang]); n != "" {
			return n
		}
	}
	return strings.TrimSpace(tags["name"])
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

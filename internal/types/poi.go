package types

// POI is a real-world place returned by the geodata service.
type POI struct {
	Name       string            `json:"name"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	DistanceKm float64           `json:"distance_km"`
	Tags       map[string]string `json:"tags"`    // matched OSM key/value plus "category"
	OSMURL     string            `json:"osm_url"` // provenance link on openstreetmap.org
}

// Category returns the internal tag the place was matched for.
func (p POI) Category() string {
	return p.Tags["category"]
}

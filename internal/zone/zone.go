// Package zone holds the static table of monitored neighborhoods.
package zone

import "github.com/mu1bokjoa/FloodResponseSystem/internal/models"

type key struct {
	region, subregion, locality string
}

// Registry is an immutable exact-match lookup of monitored zones. Safe for concurrent use.
type Registry struct {
	zones map[key]models.Zone
	order []key
}

// NewRegistry builds a Registry from zones. Later duplicates replace earlier ones.
func NewRegistry(zones []models.Zone) *Registry {
	r := &Registry{zones: make(map[key]models.Zone, len(zones))}
	for _, z := range zones {
		k := key{z.Region, z.Subregion, z.Locality}
		if _, exists := r.zones[k]; !exists {
			r.order = append(r.order, k)
		}
		r.zones[k] = z
	}
	return r
}

// Default returns the registry of the three habitually flooded 대구광역시 zones.
func Default() *Registry {
	return NewRegistry([]models.Zone{
		{Region: "대구광역시", Subregion: "북구", Locality: "노곡동", NX: 88, NY: 89, RiverSensorID: "1018683", Name: "노곡동", Lat: 35.9063, Lng: 128.5629},
		{Region: "대구광역시", Subregion: "달서구", Locality: "죽전동", NX: 86, NY: 87, RiverSensorID: "1018683", Name: "죽전네거리/서남시장", Lat: 35.8523, Lng: 128.5425},
		{Region: "대구광역시", Subregion: "동구", Locality: "효목동", NX: 91, NY: 91, RiverSensorID: "1018662", Name: "동촌유원지", Lat: 35.8825, Lng: 128.6499},
	})
}

// Lookup returns the zone for the exact (region, subregion, locality) triple.
// No trimming or case folding is applied.
func (r *Registry) Lookup(region, subregion, locality string) (models.Zone, bool) {
	z, ok := r.zones[key{region, subregion, locality}]
	return z, ok
}

// Zones returns all zones in registration order.
func (r *Registry) Zones() []models.Zone {
	out := make([]models.Zone, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.zones[k])
	}
	return out
}

// Tree returns region -> subregion -> locality -> zone, the shape served by /api/locations.
func (r *Registry) Tree() map[string]map[string]map[string]models.Zone {
	tree := make(map[string]map[string]map[string]models.Zone)
	for _, z := range r.Zones() {
		subs, ok := tree[z.Region]
		if !ok {
			subs = make(map[string]map[string]models.Zone)
			tree[z.Region] = subs
		}
		locs, ok := subs[z.Subregion]
		if !ok {
			locs = make(map[string]models.Zone)
			subs[z.Subregion] = locs
		}
		locs[z.Locality] = z
	}
	return tree
}

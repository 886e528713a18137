package repower

import (
	"fmt"
	"sort"
)

// MapID identifies a map definition.
type MapID string

// RegionID is the stable handle of a region within a map.
type RegionID int

// CountryID is the stable handle of a country within a map. Zero means no country.
type CountryID int

// NoCountry marks a neutral region.
const NoCountry CountryID = 0

// Region is a node of the map graph.
type Region struct {
	ID        RegionID
	Name      string
	ShortName string
	Land      bool
	Water     bool
	Render    bool      // cosmetic only
	Country   CountryID // NoCountry for neutral territory
}

// Link connects two regions. Unless Unidirectional is set, it can be
// traversed in both directions.
type Link struct {
	Source         RegionID
	Destination    RegionID
	Unidirectional bool
	CrossingWater  bool
}

// Country is a playable faction of a map. Its headquarters holds the flag and
// its reserve is the off-board staging area for new tokens.
type Country struct {
	ID           CountryID
	Name         string
	Headquarters RegionID
	Reserve      RegionID
}

type edge struct {
	to            RegionID
	crossingWater bool
}

// Map holds the full region graph of one board. It is immutable once built.
type Map struct {
	ID        MapID
	Name      string
	regions   map[RegionID]*Region
	regionIDs []RegionID
	countries []Country
	links     []Link
	edges     map[RegionID][]edge
	reserveOf map[RegionID]CountryID
	hqOf      map[RegionID]CountryID
}

// NewMap validates the topology and builds the lookup tables.
func NewMap(id MapID, name string, regions []Region, countries []Country, links []Link) (*Map, error) {
	m := &Map{
		ID:        id,
		Name:      name,
		regions:   make(map[RegionID]*Region, len(regions)),
		edges:     make(map[RegionID][]edge, len(regions)),
		reserveOf: make(map[RegionID]CountryID, len(countries)),
		hqOf:      make(map[RegionID]CountryID, len(countries)),
	}

	for i := range regions {
		r := regions[i]
		if r.ID <= 0 {
			return nil, fmt.Errorf("map %s: region %q has invalid id %d", id, r.Name, r.ID)
		}
		if _, dup := m.regions[r.ID]; dup {
			return nil, fmt.Errorf("map %s: duplicate region id %d", id, r.ID)
		}
		m.regions[r.ID] = &r
		m.regionIDs = append(m.regionIDs, r.ID)
	}
	sort.Slice(m.regionIDs, func(i, j int) bool { return m.regionIDs[i] < m.regionIDs[j] })

	seenCountry := make(map[CountryID]bool, len(countries))
	for _, c := range countries {
		if c.ID == NoCountry || seenCountry[c.ID] {
			return nil, fmt.Errorf("map %s: invalid or duplicate country id %d", id, c.ID)
		}
		seenCountry[c.ID] = true
		for _, r := range []RegionID{c.Headquarters, c.Reserve} {
			if _, ok := m.regions[r]; !ok {
				return nil, fmt.Errorf("map %s: country %s references unknown region %d", id, c.Name, r)
			}
			if _, taken := m.hqOf[r]; taken {
				return nil, fmt.Errorf("map %s: region %d is already a headquarters", id, r)
			}
			if _, taken := m.reserveOf[r]; taken {
				return nil, fmt.Errorf("map %s: region %d is already a reserve", id, r)
			}
		}
		if c.Headquarters == c.Reserve {
			return nil, fmt.Errorf("map %s: country %s uses one region as headquarters and reserve", id, c.Name)
		}
		m.hqOf[c.Headquarters] = c.ID
		m.reserveOf[c.Reserve] = c.ID
		m.countries = append(m.countries, c)
	}
	for _, r := range m.regions {
		if r.Country != NoCountry && !seenCountry[r.Country] {
			return nil, fmt.Errorf("map %s: region %s belongs to unknown country %d", id, r.Name, r.Country)
		}
	}

	type pair struct{ a, b RegionID }
	seenPair := make(map[pair]bool, len(links))
	for _, l := range links {
		if _, ok := m.regions[l.Source]; !ok {
			return nil, fmt.Errorf("map %s: link references unknown region %d", id, l.Source)
		}
		if _, ok := m.regions[l.Destination]; !ok {
			return nil, fmt.Errorf("map %s: link references unknown region %d", id, l.Destination)
		}
		if l.Source == l.Destination {
			return nil, fmt.Errorf("map %s: region %d links to itself", id, l.Source)
		}
		p := pair{l.Source, l.Destination}
		if p.a > p.b {
			p.a, p.b = p.b, p.a
		}
		if seenPair[p] {
			return nil, fmt.Errorf("map %s: duplicate link between %d and %d", id, l.Source, l.Destination)
		}
		seenPair[p] = true

		m.links = append(m.links, l)
		m.edges[l.Source] = append(m.edges[l.Source], edge{l.Destination, l.CrossingWater})
		if !l.Unidirectional {
			m.edges[l.Destination] = append(m.edges[l.Destination], edge{l.Source, l.CrossingWater})
		}
	}
	return m, nil
}

// Region returns the region with the given id, or nil.
func (m *Map) Region(id RegionID) *Region {
	return m.regions[id]
}

// HasRegion reports whether id belongs to this map.
func (m *Map) HasRegion(id RegionID) bool {
	_, ok := m.regions[id]
	return ok
}

// Regions returns all regions in ascending id order.
func (m *Map) Regions() []Region {
	out := make([]Region, 0, len(m.regionIDs))
	for _, id := range m.regionIDs {
		out = append(out, *m.regions[id])
	}
	return out
}

// RegionIDs returns all region ids in ascending order.
func (m *Map) RegionIDs() []RegionID {
	return append([]RegionID(nil), m.regionIDs...)
}

// Links returns the declared links.
func (m *Map) Links() []Link {
	return append([]Link(nil), m.links...)
}

// Countries returns the countries in seat order.
func (m *Map) Countries() []Country {
	return append([]Country(nil), m.countries...)
}

// Seats is the number of players the map supports.
func (m *Map) Seats() int {
	return len(m.countries)
}

// Country returns the country with the given id, or nil.
func (m *Map) Country(id CountryID) *Country {
	for i := range m.countries {
		if m.countries[i].ID == id {
			return &m.countries[i]
		}
	}
	return nil
}

// ReserveOf returns the country whose reserve is r.
func (m *Map) ReserveOf(r RegionID) (CountryID, bool) {
	c, ok := m.reserveOf[r]
	return c, ok
}

// HeadquartersOf returns the country whose headquarters is r.
func (m *Map) HeadquartersOf(r RegionID) (CountryID, bool) {
	c, ok := m.hqOf[r]
	return c, ok
}

// Neighbors returns the regions reachable in one step from r, honoring
// link direction.
func (m *Map) Neighbors(r RegionID) []RegionID {
	out := make([]RegionID, 0, len(m.edges[r]))
	for _, e := range m.edges[r] {
		out = append(out, e.to)
	}
	return out
}

package repower

import (
	"fmt"
	"sync"
)

// AlphaMapID identifies the two-seat Alpha board.
const AlphaMapID MapID = "alpha"

// Country handles on the Alpha board, in seat order.
const (
	North CountryID = 1
	South CountryID = 2
)

// Alpha board region handles.
const (
	SouthHQ RegionID = iota + 1
	NorthHQ
	SouthReserve
	NorthReserve
	Ocean1
	Ocean2
	Ocean3
	Ocean4
	Ocean5
	Ocean6
	Ocean7
	Ocean8
	Ocean9
	North1
	North2
	North3
	North4
	North5
	North6
	North7
	North8
	North9
	South1
	South2
	South3
	South4
	South5
	South6
	South7
	South8
	South9
	WestIsland
	EastIsland
)

var (
	alphaOnce sync.Once
	alphaMap  *Map
)

// AlphaMap returns the two-player Alpha board. Built once and shared.
func AlphaMap() *Map {
	alphaOnce.Do(func() {
		m, err := NewMap(AlphaMapID, "Alpha", alphaRegions(), alphaCountries(), alphaLinks())
		if err != nil {
			panic(fmt.Sprintf("alpha map fixture: %v", err))
		}
		alphaMap = m
	})
	return alphaMap
}

// Maps returns every built-in map.
func Maps() []*Map {
	return []*Map{AlphaMap()}
}

// MapByID looks up a built-in map.
func MapByID(id MapID) (*Map, bool) {
	for _, m := range Maps() {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

func alphaCountries() []Country {
	return []Country{
		{ID: North, Name: "North", Headquarters: NorthHQ, Reserve: NorthReserve},
		{ID: South, Name: "South", Headquarters: SouthHQ, Reserve: SouthReserve},
	}
}

func alphaRegions() []Region {
	regions := []Region{
		{ID: SouthHQ, Name: "South HQ", ShortName: "SHQ", Land: true, Water: true, Render: true, Country: South},
		{ID: NorthHQ, Name: "North HQ", ShortName: "NHQ", Land: true, Water: true, Render: true, Country: North},
		{ID: SouthReserve, Name: "South Reserve", ShortName: "SRe", Land: true, Water: true, Country: South},
		{ID: NorthReserve, Name: "North Reserve", ShortName: "NRe", Land: true, Water: true, Country: North},
	}
	for i := 0; i < 9; i++ {
		regions = append(regions, Region{
			ID:        Ocean1 + RegionID(i),
			Name:      fmt.Sprintf("Ocean %d", i+1),
			ShortName: fmt.Sprintf("Oc%d", i+1),
			Water:     true,
			Render:    true,
		})
	}
	for _, side := range []struct {
		first   RegionID
		name    string
		short   string
		country CountryID
	}{
		{North1, "North", "No", North},
		{South1, "South", "So", South},
	} {
		for i := 0; i < 9; i++ {
			regions = append(regions, Region{
				ID:        side.first + RegionID(i),
				Name:      fmt.Sprintf("%s %d", side.name, i+1),
				ShortName: fmt.Sprintf("%s%d", side.short, i+1),
				Land:      true,
				Water:     i != 4, // the centre square is landlocked
				Render:    true,
				Country:   side.country,
			})
		}
	}
	regions = append(regions,
		Region{ID: WestIsland, Name: "West Island", ShortName: "WIs", Land: true, Water: true, Render: true},
		Region{ID: EastIsland, Name: "East Island", ShortName: "EIs", Land: true, Water: true, Render: true},
	)
	return regions
}

func alphaLinks() []Link {
	oc := func(n int) RegionID { return Ocean1 + RegionID(n-1) }
	no := func(n int) RegionID { return North1 + RegionID(n-1) }
	so := func(n int) RegionID { return South1 + RegionID(n-1) }
	link := func(a, b RegionID) Link { return Link{Source: a, Destination: b} }
	wet := func(a, b RegionID) Link { return Link{Source: a, Destination: b, CrossingWater: true} }

	links := []Link{
		{Source: NorthReserve, Destination: NorthHQ, Unidirectional: true},
		{Source: SouthReserve, Destination: SouthHQ, Unidirectional: true},

		link(NorthHQ, oc(2)), link(NorthHQ, oc(3)),
		wet(NorthHQ, no(1)), wet(NorthHQ, no(2)), wet(NorthHQ, no(3)),

		link(SouthHQ, oc(6)), link(SouthHQ, oc(7)),
		wet(SouthHQ, so(1)), wet(SouthHQ, so(2)), wet(SouthHQ, so(3)),

		link(WestIsland, oc(4)), link(WestIsland, oc(5)), link(WestIsland, oc(9)),
		wet(WestIsland, no(9)), wet(WestIsland, so(7)),

		link(EastIsland, oc(1)), link(EastIsland, oc(8)), link(EastIsland, oc(9)),
		wet(EastIsland, no(7)), wet(EastIsland, so(9)),

		link(oc(1), oc(2)), link(oc(1), no(1)), link(oc(1), no(4)), link(oc(1), no(7)), link(oc(1), oc(9)),
		link(oc(2), no(5)), link(oc(2), no(2)), link(oc(2), no(1)), link(oc(2), no(4)),
		link(oc(3), no(2)), link(oc(3), no(6)), link(oc(3), oc(4)),
		link(oc(4), no(3)), link(oc(4), no(6)), link(oc(4), no(9)),
		link(oc(5), oc(9)), link(oc(5), oc(6)), link(oc(5), so(7)), link(oc(5), so(1)), link(oc(5), so(2)), link(oc(5), so(4)),
		link(oc(6), so(1)), link(oc(6), so(2)), link(oc(6), so(4)),
		link(oc(7), oc(8)), link(oc(7), so(2)), link(oc(7), so(3)), link(oc(7), so(6)),
		link(oc(8), oc(9)), link(oc(8), so(9)), link(oc(8), so(6)), link(oc(8), so(3)),
		link(oc(9), no(7)), link(oc(9), no(8)), link(oc(9), no(9)), link(oc(9), so(7)), link(oc(9), so(8)), link(oc(9), so(9)),
	}

	grid := map[int][]int{
		1: {2, 4, 5},
		2: {3, 4, 5, 6},
		3: {5, 6},
		4: {5, 7, 8},
		5: {6, 7, 8, 9},
		6: {8, 9},
		7: {8},
		8: {9},
	}
	for src := 1; src <= 8; src++ {
		for _, dst := range grid[src] {
			links = append(links, link(no(src), no(dst)), link(so(src), so(dst)))
		}
	}
	return links
}

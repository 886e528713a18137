package repower

import (
	"slices"
	"testing"
)

func TestAlphaMapShape(t *testing.T) {
	m := AlphaMap()
	if got := len(m.Regions()); got != 33 {
		t.Errorf("expected 33 regions, got %d", got)
	}
	if m.Seats() != 2 {
		t.Errorf("expected 2 seats, got %d", m.Seats())
	}
	countries := m.Countries()
	if countries[0].ID != North || countries[1].ID != South {
		t.Errorf("expected North then South, got %+v", countries)
	}
	if c, ok := m.ReserveOf(NorthReserve); !ok || c != North {
		t.Errorf("NorthReserve should be North's reserve")
	}
	if c, ok := m.HeadquartersOf(SouthHQ); !ok || c != South {
		t.Errorf("SouthHQ should be South's headquarters")
	}
	if m.Region(North5).Water {
		t.Error("North 5 should be landlocked")
	}
	if m.Region(NorthReserve).Render {
		t.Error("reserves are not rendered")
	}
}

func TestAlphaMapLinksWorkBothWays(t *testing.T) {
	m := AlphaMap()
	// Declared NorthHQ -> Ocean2.
	if !slices.Contains(m.Neighbors(Ocean2), NorthHQ) {
		t.Error("Ocean2 should neighbor NorthHQ through an undirected link")
	}
	// Declared NorthReserve -> NorthHQ, one way.
	if slices.Contains(m.Neighbors(NorthHQ), NorthReserve) {
		t.Error("NorthHQ must not lead back into the reserve")
	}
	if !slices.Contains(m.Neighbors(NorthReserve), NorthHQ) {
		t.Error("reserve should lead to its headquarters")
	}
}

func TestMapByID(t *testing.T) {
	if m, ok := MapByID(AlphaMapID); !ok || m != AlphaMap() {
		t.Error("alpha map should be registered")
	}
	if _, ok := MapByID("missing"); ok {
		t.Error("unknown map should not be found")
	}
}

func smallRegions() []Region {
	return []Region{
		{ID: 1, Name: "A", Land: true},
		{ID: 2, Name: "B", Land: true},
		{ID: 3, Name: "HQ", Land: true},
		{ID: 4, Name: "Reserve", Land: true},
	}
}

func TestNewMapRejectsDuplicateLinks(t *testing.T) {
	tests := []struct {
		name  string
		links []Link
	}{
		{"same direction", []Link{{Source: 1, Destination: 2}, {Source: 1, Destination: 2}}},
		{"reversed", []Link{{Source: 1, Destination: 2}, {Source: 2, Destination: 1, Unidirectional: true}}},
		{"self link", []Link{{Source: 1, Destination: 1}}},
		{"unknown region", []Link{{Source: 1, Destination: 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMap("x", "x", smallRegions(), nil, tt.links); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewMapRejectsSharedCountryRegions(t *testing.T) {
	countries := []Country{
		{ID: 1, Name: "One", Headquarters: 3, Reserve: 4},
		{ID: 2, Name: "Two", Headquarters: 1, Reserve: 4},
	}
	if _, err := NewMap("x", "x", smallRegions(), countries, nil); err == nil {
		t.Error("expected error for a reserve shared by two countries")
	}

	same := []Country{{ID: 1, Name: "One", Headquarters: 3, Reserve: 3}}
	if _, err := NewMap("x", "x", smallRegions(), same, nil); err == nil {
		t.Error("expected error for headquarters equal to reserve")
	}
}

func TestStandardCatalog(t *testing.T) {
	cat := StandardCatalog()
	if got := len(cat.TokenTypes()); got != 9 {
		t.Errorf("expected 9 token types, got %d", got)
	}
	if got := len(cat.Conversions()); got != 4 {
		t.Errorf("expected 4 conversions, got %d", got)
	}
	inf := cat.TokenTypeByName("Infantry")
	if inf == nil || inf.ID != Infantry || inf.Strength != 2 || !inf.Purchasable {
		t.Errorf("unexpected infantry: %+v", inf)
	}
	if cat.TokenType(Regiment).Purchasable {
		t.Error("regiments are conversion only")
	}
	if got := cat.DescribeConversion(InfantryToRegiment); got != "3 Infantry to 1 Regiment" {
		t.Errorf("unexpected description %q", got)
	}
	if len(cat.ValueConversions()) != 1 {
		t.Error("expected the mega-missile value conversion to be declared")
	}
}

func TestNewCatalogRejectsBadConversion(t *testing.T) {
	types := []TokenType{{ID: 1, Name: "A"}}
	if _, err := NewCatalog(types, []Conversion{{ID: 1, Needs: 1, NeedsQuantity: 3, Produces: 2, ProducesQuantity: 1}}, nil); err == nil {
		t.Error("expected error for unknown produced type")
	}
	if _, err := NewCatalog(types, []Conversion{{ID: 1, Needs: 1, NeedsQuantity: 0, Produces: 1, ProducesQuantity: 1}}, nil); err == nil {
		t.Error("expected error for zero quantity")
	}
}

package handler

import (
	"net/http"

	"github.com/freeeve/repower/pkg/repower"
)

type regionJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Land      bool   `json:"land"`
	Water     bool   `json:"water"`
	Render    bool   `json:"render"`
	Country   int    `json:"country,omitempty"`
}

type linkJSON struct {
	Source         int  `json:"source"`
	Destination    int  `json:"destination"`
	Unidirectional bool `json:"unidirectional,omitempty"`
	CrossingWater  bool `json:"crossing_water,omitempty"`
}

type countryJSON struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Headquarters int    `json:"headquarters"`
	Reserve      int    `json:"reserve"`
}

type mapJSON struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Seats     int           `json:"seats"`
	Countries []countryJSON `json:"countries"`
	Regions   []regionJSON  `json:"regions"`
	Links     []linkJSON    `json:"links"`
}

func toMapJSON(m *repower.Map) mapJSON {
	out := mapJSON{ID: string(m.ID), Name: m.Name, Seats: m.Seats()}
	for _, c := range m.Countries() {
		out.Countries = append(out.Countries, countryJSON{int(c.ID), c.Name, int(c.Headquarters), int(c.Reserve)})
	}
	for _, r := range m.Regions() {
		out.Regions = append(out.Regions, regionJSON{int(r.ID), r.Name, r.ShortName, r.Land, r.Water, r.Render, int(r.Country)})
	}
	for _, l := range m.Links() {
		out.Links = append(out.Links, linkJSON{int(l.Source), int(l.Destination), l.Unidirectional, l.CrossingWater})
	}
	return out
}

type tokenTypeJSON struct {
	ID                       int    `json:"id"`
	Name                     string `json:"name"`
	ShortName                string `json:"short_name"`
	Strength                 int    `json:"strength"`
	Movements                int    `json:"movements"`
	CanBeOnLand              bool   `json:"can_be_on_land"`
	CanBeOnWater             bool   `json:"can_be_on_water"`
	OneWaterCrossPerMovement bool   `json:"one_water_cross_per_movement"`
	Purchasable              bool   `json:"purchasable"`
	CanCaptureFlag           bool   `json:"can_capture_flag"`
	SpecialMissile           bool   `json:"special_missile"`
	SpecialDestroysAll       bool   `json:"special_destroys_all"`
	SpecialAttackReserves    bool   `json:"special_attack_reserves"`
}

type conversionJSON struct {
	ID               int    `json:"id"`
	Description      string `json:"description"`
	Needs            int    `json:"needs"`
	NeedsQuantity    int    `json:"needs_quantity"`
	Produces         int    `json:"produces"`
	ProducesQuantity int    `json:"produces_quantity"`
}

type catalogJSON struct {
	TokenTypes  []tokenTypeJSON  `json:"token_types"`
	Conversions []conversionJSON `json:"conversions"`
}

func toCatalogJSON(cat *repower.Catalog) catalogJSON {
	var out catalogJSON
	for _, t := range cat.TokenTypes() {
		out.TokenTypes = append(out.TokenTypes, tokenTypeJSON{
			ID:                       int(t.ID),
			Name:                     t.Name,
			ShortName:                t.ShortName,
			Strength:                 t.Strength,
			Movements:                t.Movements,
			CanBeOnLand:              t.CanBeOnLand,
			CanBeOnWater:             t.CanBeOnWater,
			OneWaterCrossPerMovement: t.OneWaterCrossPerMovement,
			Purchasable:              t.Purchasable,
			CanCaptureFlag:           t.CanCaptureFlag,
			SpecialMissile:           t.SpecialMissile,
			SpecialDestroysAll:       t.SpecialDestroysAll,
			SpecialAttackReserves:    t.SpecialAttackReserves,
		})
	}
	for _, c := range cat.Conversions() {
		out.Conversions = append(out.Conversions, conversionJSON{
			ID: int(c.ID), Description: cat.DescribeConversion(c.ID),
			Needs: int(c.Needs), NeedsQuantity: c.NeedsQuantity,
			Produces: int(c.Produces), ProducesQuantity: c.ProducesQuantity,
		})
	}
	return out
}

// CatalogHandler serves the static rule data: boards and token types.
// Both are immutable, so the responses are built once.
type CatalogHandler struct {
	maps    []mapJSON
	catalog catalogJSON
}

// NewCatalogHandler creates a CatalogHandler for the given boards and rules.
func NewCatalogHandler(maps []*repower.Map, cat *repower.Catalog) *CatalogHandler {
	h := &CatalogHandler{catalog: toCatalogJSON(cat)}
	for _, m := range maps {
		h.maps = append(h.maps, toMapJSON(m))
	}
	return h
}

// ListMaps handles GET /api/v1/maps
func (h *CatalogHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.maps)
}

// GetMap handles GET /api/v1/maps/{id}
func (h *CatalogHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, m := range h.maps {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, "map not found")
}

// GetCatalog handles GET /api/v1/catalog
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}

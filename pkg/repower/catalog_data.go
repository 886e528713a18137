package repower

import (
	"fmt"
	"sync"
)

// Standard token type handles.
const (
	Infantry TokenTypeID = iota + 1
	SmallTank
	Fighter
	Destroyer
	Regiment
	Tank
	Bomber
	Cruiser
	MegaMissile
)

// Standard conversion handles.
const (
	InfantryToRegiment ConversionID = iota + 1
	SmallTankToTank
	FighterToBomber
	DestroyerToCruiser
)

var (
	catalogOnce     sync.Once
	standardCatalog *Catalog
)

// StandardCatalog returns the standard token rules. Built once and shared.
func StandardCatalog() *Catalog {
	catalogOnce.Do(func() {
		c, err := NewCatalog(standardTokenTypes(), standardConversions(), []ValueConversion{
			{ID: 1, FromTokens: true, NeedsValue: 100, Produces: MegaMissile},
		})
		if err != nil {
			panic(fmt.Sprintf("standard catalog fixture: %v", err))
		}
		standardCatalog = c
	})
	return standardCatalog
}

func standardTokenTypes() []TokenType {
	return []TokenType{
		{ID: Infantry, Name: "Infantry", ShortName: "IN", Movements: 2, Strength: 2, Purchasable: true,
			OneWaterCrossPerMovement: true, CanBeOnLand: true, CanCaptureFlag: true},
		{ID: SmallTank, Name: "Small Tank", ShortName: "S-T", Movements: 3, Strength: 3, Purchasable: true,
			OneWaterCrossPerMovement: true, CanBeOnLand: true, CanCaptureFlag: true},
		{ID: Fighter, Name: "Fighter", ShortName: "F", Movements: 5, Strength: 5, Purchasable: true,
			CanBeOnLand: true},
		{ID: Destroyer, Name: "Destroyer", ShortName: "D", Movements: 1, Strength: 10, Purchasable: true,
			CanBeOnWater: true},
		{ID: Regiment, Name: "Regiment", ShortName: "REG", Movements: 2, Strength: 20,
			OneWaterCrossPerMovement: true, CanBeOnLand: true, CanCaptureFlag: true},
		{ID: Tank, Name: "Tank", ShortName: "TNK", Movements: 3, Strength: 30,
			OneWaterCrossPerMovement: true, CanBeOnLand: true, CanCaptureFlag: true},
		{ID: Bomber, Name: "Bomber", ShortName: "B", Movements: 5, Strength: 25,
			CanBeOnLand: true},
		{ID: Cruiser, Name: "Cruiser", ShortName: "C", Movements: 1, Strength: 50,
			CanBeOnWater: true},
		{ID: MegaMissile, Name: "Mega-Missile", ShortName: "M-M", Movements: 0, Strength: 0,
			CanBeOnLand: true, SpecialDestroysAll: true, SpecialAttackReserves: true, SpecialMissile: true},
	}
}

func standardConversions() []Conversion {
	return []Conversion{
		{ID: InfantryToRegiment, Needs: Infantry, NeedsQuantity: 3, Produces: Regiment, ProducesQuantity: 1},
		{ID: SmallTankToTank, Needs: SmallTank, NeedsQuantity: 3, Produces: Tank, ProducesQuantity: 1},
		{ID: FighterToBomber, Needs: Fighter, NeedsQuantity: 3, Produces: Bomber, ProducesQuantity: 1},
		{ID: DestroyerToCruiser, Needs: Destroyer, NeedsQuantity: 3, Produces: Cruiser, ProducesQuantity: 1},
	}
}

// LoadoutEntry is a number of tokens of one type granted at match start.
type LoadoutEntry struct {
	Type  TokenTypeID
	Count int
}

// DefaultLoadout is the starting token set every player receives in their
// reserve when a match begins.
func DefaultLoadout() []LoadoutEntry {
	return []LoadoutEntry{
		{Type: Infantry, Count: 2},
		{Type: SmallTank, Count: 2},
		{Type: Fighter, Count: 2},
		{Type: Destroyer, Count: 2},
	}
}

package repower

import "fmt"

// TokenTypeID is the stable handle of a token type.
type TokenTypeID int

// ConversionID is the stable handle of a token conversion.
type ConversionID int

// TokenType describes a kind of unit and its capabilities. Purchasable types
// cost their strength in power points.
type TokenType struct {
	ID                       TokenTypeID
	Name                     string
	ShortName                string
	Strength                 int
	Movements                int
	CanBeOnLand              bool
	CanBeOnWater             bool
	OneWaterCrossPerMovement bool
	Purchasable              bool
	CanCaptureFlag           bool
	SpecialMissile           bool // counts in combat only when fired this turn; removed afterwards
	SpecialDestroysAll       bool // unbeatable when fired; drains a targeted reserve's power points
	SpecialAttackReserves    bool
}

// Conversion turns NeedsQuantity tokens of one type into ProducesQuantity
// tokens of another, in place.
type Conversion struct {
	ID               ConversionID
	Needs            TokenTypeID
	NeedsQuantity    int
	Produces         TokenTypeID
	ProducesQuantity int
}

// ValueConversion trades accumulated value for a token. It is part of the
// rule data but has no executable semantics yet.
type ValueConversion struct {
	ID         int
	FromPoints bool
	FromTokens bool
	NeedsValue int
	Produces   TokenTypeID
}

// Catalog is the immutable set of token rules for a game.
type Catalog struct {
	types            map[TokenTypeID]*TokenType
	typeOrder        []TokenTypeID
	conversions      map[ConversionID]*Conversion
	conversionOrder  []ConversionID
	valueConversions []ValueConversion
}

// NewCatalog validates and indexes the token rules.
func NewCatalog(types []TokenType, conversions []Conversion, valueConversions []ValueConversion) (*Catalog, error) {
	c := &Catalog{
		types:            make(map[TokenTypeID]*TokenType, len(types)),
		conversions:      make(map[ConversionID]*Conversion, len(conversions)),
		valueConversions: append([]ValueConversion(nil), valueConversions...),
	}
	for i := range types {
		t := types[i]
		if _, dup := c.types[t.ID]; dup || t.ID <= 0 {
			return nil, fmt.Errorf("catalog: invalid or duplicate token type id %d", t.ID)
		}
		if t.Strength < 0 || t.Movements < 0 {
			return nil, fmt.Errorf("catalog: token type %s has negative strength or movements", t.Name)
		}
		c.types[t.ID] = &t
		c.typeOrder = append(c.typeOrder, t.ID)
	}
	for i := range conversions {
		cv := conversions[i]
		if _, dup := c.conversions[cv.ID]; dup || cv.ID <= 0 {
			return nil, fmt.Errorf("catalog: invalid or duplicate conversion id %d", cv.ID)
		}
		if c.types[cv.Needs] == nil || c.types[cv.Produces] == nil {
			return nil, fmt.Errorf("catalog: conversion %d references unknown token type", cv.ID)
		}
		if cv.NeedsQuantity <= 0 || cv.ProducesQuantity <= 0 {
			return nil, fmt.Errorf("catalog: conversion %d has non-positive quantity", cv.ID)
		}
		c.conversions[cv.ID] = &cv
		c.conversionOrder = append(c.conversionOrder, cv.ID)
	}
	for _, vc := range valueConversions {
		if c.types[vc.Produces] == nil {
			return nil, fmt.Errorf("catalog: value conversion %d references unknown token type", vc.ID)
		}
	}
	return c, nil
}

// TokenType returns the type with the given id, or nil.
func (c *Catalog) TokenType(id TokenTypeID) *TokenType {
	return c.types[id]
}

// TokenTypeByName finds a type by its display name.
func (c *Catalog) TokenTypeByName(name string) *TokenType {
	for _, id := range c.typeOrder {
		if c.types[id].Name == name {
			return c.types[id]
		}
	}
	return nil
}

// TokenTypes returns all types in declaration order.
func (c *Catalog) TokenTypes() []TokenType {
	out := make([]TokenType, 0, len(c.typeOrder))
	for _, id := range c.typeOrder {
		out = append(out, *c.types[id])
	}
	return out
}

// Conversion returns the conversion with the given id, or nil.
func (c *Catalog) Conversion(id ConversionID) *Conversion {
	return c.conversions[id]
}

// Conversions returns all conversions in declaration order.
func (c *Catalog) Conversions() []Conversion {
	out := make([]Conversion, 0, len(c.conversionOrder))
	for _, id := range c.conversionOrder {
		out = append(out, *c.conversions[id])
	}
	return out
}

// ValueConversions returns the declared value conversions.
func (c *Catalog) ValueConversions() []ValueConversion {
	return append([]ValueConversion(nil), c.valueConversions...)
}

// DescribeConversion renders a conversion such as "3 Infantry to 1 Regiment".
func (c *Catalog) DescribeConversion(id ConversionID) string {
	cv := c.conversions[id]
	if cv == nil {
		return fmt.Sprintf("conversion %d", id)
	}
	return fmt.Sprintf("%d %s to %d %s", cv.NeedsQuantity, c.types[cv.Needs].Name, cv.ProducesQuantity, c.types[cv.Produces].Name)
}

package repower

import "fmt"

// CommandType is the kind of a queued order.
type CommandType string

const (
	CommandMove         CommandType = "move"
	CommandPurchase     CommandType = "purchase"
	CommandConvert      CommandType = "convert"
	CommandValueConvert CommandType = "value_convert"
)

// Validity is the resolution outcome of a command.
type Validity string

const (
	Unresolved Validity = "unresolved"
	Valid      Validity = "valid"
	Invalid    Validity = "invalid"
)

// Command is one order queued by a player for a turn.
// Source holds the move origin or the conversion location.
type Command struct {
	ID              string
	Player          PlayerID
	Order           int
	Type            CommandType
	Source          RegionID
	Destination     RegionID
	TokenType       TokenTypeID
	Conversion      ConversionID
	ValueConversion int
	Valid           Validity
	RevertedInDraw  bool
}

// Describe renders the command for players, e.g. "Move Infantry from North HQ to North 1".
func (c Command) Describe(m *Map, cat *Catalog) string {
	regionName := func(id RegionID) string {
		if r := m.Region(id); r != nil {
			return r.Name
		}
		return fmt.Sprintf("region %d", id)
	}
	typeName := func(id TokenTypeID) (string, int) {
		if tt := cat.TokenType(id); tt != nil {
			return tt.Name, tt.Strength
		}
		return fmt.Sprintf("type %d", id), 0
	}

	switch c.Type {
	case CommandMove:
		name, _ := typeName(c.TokenType)
		return fmt.Sprintf("Move %s from %s to %s", name, regionName(c.Source), regionName(c.Destination))
	case CommandPurchase:
		name, cost := typeName(c.TokenType)
		return fmt.Sprintf("Buy %s for %d", name, cost)
	case CommandConvert:
		return fmt.Sprintf("Convert %s in %s", cat.DescribeConversion(c.Conversion), regionName(c.Source))
	case CommandValueConvert:
		return fmt.Sprintf("Value conversion %d", c.ValueConversion)
	default:
		return string(c.Type)
	}
}

// CommandErrorKind classifies a rejected submission.
type CommandErrorKind string

const (
	CommandInvalidLocation   CommandErrorKind = "invalid_location"
	CommandNotPurchasable    CommandErrorKind = "not_purchasable"
	CommandUnknownTokenType  CommandErrorKind = "unknown_token_type"
	CommandUnknownConversion CommandErrorKind = "unknown_conversion"
	CommandQuotaExceeded     CommandErrorKind = "quota_exceeded"
	CommandWrongPhase        CommandErrorKind = "wrong_phase"
	CommandUnsupported       CommandErrorKind = "unsupported"
)

// CommandError explains why a command was refused at submission time.
type CommandError struct {
	Kind    CommandErrorKind
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command rejected (%s): %s", e.Kind, e.Message)
}

// CheckCommand validates a submission against static rules: locations on the
// match's map, purchasable types, known conversions and the per-turn quota.
// queued is the number of commands the player already has this turn.
// It does not look at the board; that happens at resolution.
func CheckCommand(cmd Command, m *Map, matchMap MapID, cat *Catalog, queued, limit int) error {
	if queued >= limit {
		return &CommandError{CommandQuotaExceeded, fmt.Sprintf("at most %d commands per turn", limit)}
	}
	onMap := func(r RegionID) bool { return m.ID == matchMap && m.HasRegion(r) }

	switch cmd.Type {
	case CommandMove:
		if !onMap(cmd.Source) || !onMap(cmd.Destination) {
			return &CommandError{CommandInvalidLocation, "move regions are not on the match map"}
		}
		if cat.TokenType(cmd.TokenType) == nil {
			return &CommandError{CommandUnknownTokenType, fmt.Sprintf("unknown token type %d", cmd.TokenType)}
		}
	case CommandPurchase:
		tt := cat.TokenType(cmd.TokenType)
		if tt == nil {
			return &CommandError{CommandUnknownTokenType, fmt.Sprintf("unknown token type %d", cmd.TokenType)}
		}
		if !tt.Purchasable {
			return &CommandError{CommandNotPurchasable, tt.Name + " cannot be purchased"}
		}
	case CommandConvert:
		if cat.Conversion(cmd.Conversion) == nil {
			return &CommandError{CommandUnknownConversion, fmt.Sprintf("unknown conversion %d", cmd.Conversion)}
		}
		if !onMap(cmd.Source) {
			return &CommandError{CommandInvalidLocation, "conversion region is not on the match map"}
		}
	case CommandValueConvert:
		return &CommandError{CommandUnsupported, "value conversions are not available"}
	default:
		return &CommandError{CommandUnsupported, fmt.Sprintf("unknown command type %q", cmd.Type)}
	}
	return nil
}

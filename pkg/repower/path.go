package repower

// CanReach reports whether a token of type tt, in a match played on
// matchMap, may legally move from source to destination in one command.
func (m *Map) CanReach(tt *TokenType, matchMap MapID, source, destination RegionID) bool {
	if tt == nil || matchMap != m.ID || !m.HasRegion(source) || !m.HasRegion(destination) {
		return false
	}
	if _, isReserve := m.reserveOf[destination]; isReserve && !tt.SpecialAttackReserves {
		return false
	}
	if source == destination {
		// Firing in place.
		return tt.SpecialMissile
	}
	if c, fromReserve := m.reserveOf[source]; fromReserve {
		return m.Country(c).Headquarters == destination
	}
	return m.search(tt, source, destination)
}

type pathState struct {
	region       RegionID
	movesLeft    int
	crossedWater bool
}

// search walks the graph with an explicit stack. The move budget bounds the
// depth; identical states are expanded once.
func (m *Map) search(tt *TokenType, source, destination RegionID) bool {
	stack := []pathState{{region: source, movesLeft: tt.Movements}}
	seen := map[pathState]bool{stack[0]: true}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.movesLeft == 0 {
			continue
		}
		for _, e := range m.edges[cur.region] {
			if e.crossingWater && !tt.CanBeOnWater && cur.crossedWater && tt.OneWaterCrossPerMovement {
				continue
			}
			next := m.regions[e.to]
			if !((next.Water && tt.CanBeOnWater) || (next.Land && tt.CanBeOnLand)) {
				continue
			}
			if next.ID == destination {
				return true
			}
			st := pathState{region: next.ID, movesLeft: cur.movesLeft - 1, crossedWater: cur.crossedWater || e.crossingWater}
			if !seen[st] {
				seen[st] = true
				stack = append(stack, st)
			}
		}
	}
	return false
}

package graph

func (g *Graph) UnresolvedReasonCounts() map[UnresolvedReason]int {
	counts := make(map[UnresolvedReason]int)
	if g == nil {
		return counts
	}
	for _, u := range g.Unresolved {
		reason := u.Reason
		if reason == "" {
			reason = ReasonNoModule
		}
		counts[reason]++
	}
	return counts
}

func (g *Graph) FlavorCounts() map[FlavorKind]int {
	counts := make(map[FlavorKind]int)
	if g == nil {
		return counts
	}
	for _, m := range g.Modules {
		counts[KindOf(m.Flavor)]++
	}
	return counts
}

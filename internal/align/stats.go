package align

// BuildStats aggregates match counters from a pairs list. It is the only way
// stats are produced: callers rebuild after every mutation instead of patching
// counters, so stats can never drift from the pairs they describe.
func BuildStats(pairs []Pair) Stats {
	stats := Stats{
		Total:   len(pairs),
		Methods: make(map[string]int, len(pairs)),
	}
	for _, pair := range pairs {
		stats.Methods[pair.MatchMethod]++
		switch pair.MatchMethod {
		case MethodMissing:
			stats.Unmatched++
		case MethodLLM:
			stats.LLMMatched++
		}
	}
	stats.Matched = stats.Total - stats.Unmatched
	return stats
}

// SummaryPairs flattens a summary payload's sections in emission order.
func SummaryPairs(sections []SummarySection) []Pair {
	var pairs []Pair
	for _, section := range sections {
		pairs = append(pairs, section.Pairs...)
	}
	return pairs
}

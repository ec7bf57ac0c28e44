package turn

import "strings"

// Combine interleaves the user and agent turn sequences into one
// chronological transcript, ordered by CreatedAt ascending. The merge is
// stable: when timestamps are equal the user turn precedes the agent turn,
// reflecting causal precedence within an exchange. Both inputs may be empty.
//
// Combine is a pure function and safe to call on every update; it never
// modifies its inputs.
func Combine(users, agents []Turn) []Turn {
	if len(users) == 0 && len(agents) == 0 {
		return nil
	}

	merged := make([]Turn, 0, len(users)+len(agents))
	i, j := 0, 0
	for i < len(users) && j < len(agents) {
		// User wins ties so a question always renders before its answer.
		if !users[i].CreatedAt.After(agents[j].CreatedAt) {
			merged = append(merged, users[i])
			i++
		} else {
			merged = append(merged, agents[j])
			j++
		}
	}
	merged = append(merged, users[i:]...)
	merged = append(merged, agents[j:]...)
	return merged
}

// SearchText returns the text a turn is matched against when filtering.
// Currently the transcript alone; callers should not depend on the exact
// composition.
func (t Turn) SearchText() string {
	return t.Text
}

// Filter returns the turns whose searchable text contains query,
// case-insensitive. An empty query matches every turn.
func Filter(merged []Turn, query string) []Turn {
	q := strings.ToLower(query)
	out := make([]Turn, 0, len(merged))
	for _, t := range merged {
		if strings.Contains(strings.ToLower(t.SearchText()), q) {
			out = append(out, t)
		}
	}
	return out
}

// FilterPaired returns every turn whose pairing ID matched the query on
// either side of the exchange, so a hit on a question also surfaces its
// answer and vice versa. Order of the input sequence is preserved.
func FilterPaired(merged []Turn, query string) []Turn {
	matched := make(map[string]struct{})
	for _, t := range Filter(merged, query) {
		matched[t.ID] = struct{}{}
	}

	out := make([]Turn, 0, len(merged))
	for _, t := range merged {
		if _, ok := matched[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

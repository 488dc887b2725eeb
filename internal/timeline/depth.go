package timeline

// resolveDepths assigns each span a nesting depth from its parent chain.
// A span whose parent is absent from the set is treated as a root rather
// than an error. Cyclic parent chains terminate at the point the cycle is
// detected: the repeated node is treated as a root and traversal stops.
func resolveDepths(spans []Span) map[string]int {
	present := make(map[string]bool, len(spans))
	for _, s := range spans {
		present[s.SpanID] = true
	}

	// Only keep parent links that resolve within the set.
	parent := make(map[string]string, len(spans))
	for _, s := range spans {
		if s.ParentSpanID != "" && present[s.ParentSpanID] {
			parent[s.SpanID] = s.ParentSpanID
		}
	}

	depths := make(map[string]int, len(spans))
	visiting := make(map[string]bool)

	for _, s := range spans {
		if _, done := depths[s.SpanID]; done {
			continue
		}

		// Collect the unresolved ancestor chain, then unwind it assigning
		// depths. An explicit chain instead of recursion keeps deep traces
		// from blowing the stack.
		var chain []string
		id := s.SpanID
		base := -1 // depth below the node the chain hangs off
		for {
			if d, ok := depths[id]; ok {
				base = d
				break
			}
			if visiting[id] {
				// Cyclic parent chain. Stop walking; the repeated node
				// keeps whatever depth the unwind assigns it.
				break
			}
			visiting[id] = true
			chain = append(chain, id)

			p, ok := parent[id]
			if !ok {
				break // root, or orphaned parent reference
			}
			id = p
		}

		for i := len(chain) - 1; i >= 0; i-- {
			base++
			depths[chain[i]] = base
			delete(visiting, chain[i])
		}
	}

	return depths
}

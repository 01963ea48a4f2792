package authz

// Resolve expands a set of directly assigned names into the full closure of
// reachable names by following the children of role items in the snapshot.
//
// The traversal is an iterative work queue with a visited set, so diamond
// graphs are expanded once and cyclic graphs terminate. Names without a
// matching item, and children of deleted items, are kept in the result as
// leaves. The input names themselves are always part of the closure.
//
// Resolve is a pure function of its arguments and is safe for concurrent
// use.
func Resolve(snap Snapshot, assigned []string) StringSet {
	result := make(StringSet, len(assigned))
	queue := make([]string, 0, len(assigned))
	for _, name := range assigned {
		if result.Contains(name) {
			continue
		}
		result[name] = struct{}{}
		queue = append(queue, name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		node, ok := snap[name]
		if !ok || node.Type != TypeRole {
			continue
		}
		for _, child := range node.Children {
			if result.Contains(child) {
				continue
			}
			result[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return result
}

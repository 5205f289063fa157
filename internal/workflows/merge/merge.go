// Package merge detects conflicts between an incoming record update and the
// stored record, relative to the last snapshot the update's source merged.
// Documents are compared leaf-wise; arrays count as leaves, so a reordered
// list is a change, not a structural merge.
package merge

import (
	"reflect"
	"sort"
	"strings"

	"bibflow/internal/workflows/models"
)

// absent marks a path missing from one of the three documents.
type absentValue struct{}

var absent = absentValue{}

// Result is the outcome of a three-way merge attempt.
type Result struct {
	Merged    map[string]any
	Conflicts []models.Conflict
}

// Clean reports whether the merge produced no conflicts.
func (r Result) Clean() bool { return len(r.Conflicts) == 0 }

// ThreeWay merges update into stored against the base snapshot. A leaf both
// sides changed differently is a conflict unless its path is filtered, in
// which case the update wins. Filters are dotted path prefixes.
func ThreeWay(base, stored, update map[string]any, filters []string) Result {
	baseLeaves := flatten(base)
	storedLeaves := flatten(stored)
	updateLeaves := flatten(update)

	merged := make(map[string]any)
	var conflicts []models.Conflict

	for _, path := range unionPaths(storedLeaves, updateLeaves) {
		storedV := leafAt(storedLeaves, path)
		updateV := leafAt(updateLeaves, path)
		baseV := leafAt(baseLeaves, path)

		var chosen any
		switch {
		case equal(storedV, updateV):
			chosen = storedV
		case equal(baseV, storedV):
			// Only the update moved.
			chosen = updateV
		case equal(baseV, updateV):
			// Only the stored record moved.
			chosen = storedV
		case filtered(path, filters):
			chosen = updateV
		default:
			conflicts = append(conflicts, models.Conflict{
				Path:   strings.Split(path, "."),
				Stored: exported(storedV),
				Update: exported(updateV),
			})
			chosen = storedV
		}

		if _, gone := chosen.(absentValue); gone {
			continue
		}
		install(merged, strings.Split(path, "."), chosen)
	}

	return Result{Merged: merged, Conflicts: conflicts}
}

func flatten(doc map[string]any) map[string]any {
	leaves := make(map[string]any)
	var walk func(prefix string, value any)
	walk = func(prefix string, value any) {
		nested, ok := value.(map[string]any)
		if !ok || len(nested) == 0 {
			leaves[prefix] = value
			return
		}
		for key, child := range nested {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			walk(path, child)
		}
	}
	for key, child := range doc {
		walk(key, child)
	}
	return leaves
}

func unionPaths(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for path := range a {
		seen[path] = struct{}{}
	}
	for path := range b {
		seen[path] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func leafAt(leaves map[string]any, path string) any {
	if value, ok := leaves[path]; ok {
		return value
	}
	return absent
}

func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// filtered reports whether the path falls under any filter prefix.
func filtered(path string, filters []string) bool {
	for _, filter := range filters {
		if path == filter || strings.HasPrefix(path, filter+".") {
			return true
		}
	}
	return false
}

func exported(value any) any {
	if _, gone := value.(absentValue); gone {
		return nil
	}
	return value
}

func install(doc map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		child, ok := doc[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			doc[key] = child
		}
		doc = child
	}
	doc[path[len(path)-1]] = value
}

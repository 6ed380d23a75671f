package sdjwt

import (
	"fmt"
	"sort"
)

// LeafFunc transforms a single claim leaf during a structural walk. name is
// the claim name, claim the leaf taken from the claims tree, and structure
// the leaf at the same position in the structure tree, or nil when the
// structure has no entry for that name.
type LeafFunc func(name string, claim Leaf, structure *Leaf) (Node, error)

// WalkByStructure pairs two claim trees and rebuilds the claims tree leaf
// by leaf through fn. The structure tree does not have to be fully
// populated: a branch missing from it is walked against an empty overlay.
// It does have to agree on shape wherever both trees carry the same name,
// otherwise the walk stops with ErrStructureMismatch.
//
// The same walk drives all four pairings of the protocol: salt generation
// (empty structure), commitment and disclosure computation (salts against
// claims) and verification (commitments against released entries).
func WalkByStructure(structure, claims Branch, fn LeafFunc) (Branch, error) {
	result := make(Branch, len(claims))

	// claim names are visited in sorted order so walks that consume a
	// stateful source (salt generation) stay deterministic under a
	// seeded substitute
	names := make([]string, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch claim := claims[name].(type) {
		case Branch:
			sub, err := branchAt(structure, name)
			if err != nil {
				return nil, err
			}
			nested, err := WalkByStructure(sub, claim, fn)
			if err != nil {
				return nil, err
			}
			result[name] = nested
		case Leaf:
			st, err := leafAt(structure, name)
			if err != nil {
				return nil, err
			}
			out, err := fn(name, claim, st)
			if err != nil {
				return nil, err
			}
			result[name] = out
		default:
			return nil, fmt.Errorf("claim %q has unknown node type %T: %w", name, claim, ErrStructureMismatch)
		}
	}

	return result, nil
}

func branchAt(structure Branch, name string) (Branch, error) {
	node, ok := structure[name]
	if !ok {
		return Branch{}, nil
	}
	sub, ok := node.(Branch)
	if !ok {
		return nil, fmt.Errorf("claim %q is nested but structure holds a leaf: %w", name, ErrStructureMismatch)
	}
	return sub, nil
}

func leafAt(structure Branch, name string) (*Leaf, error) {
	node, ok := structure[name]
	if !ok {
		return nil, nil
	}
	leaf, ok := node.(Leaf)
	if !ok {
		return nil, fmt.Errorf("claim %q is a leaf but structure holds a nested tree: %w", name, ErrStructureMismatch)
	}
	return &leaf, nil
}

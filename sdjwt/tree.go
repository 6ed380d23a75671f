// Package sdjwt implements issuance, selective release and verification of
// SD-JWT credentials: an issuer commits to user claims with salted hashes,
// a holder discloses a chosen subset, and a verifier checks the disclosed
// values against the issuer's commitments.
package sdjwt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node is one position in a claim tree: either a Leaf value or a nested
// Branch. The split is explicit so that shape conflicts between two trees
// surface as ErrStructureMismatch instead of silent misreads.
type Node interface {
	isNode()
}

// Branch is a nested claim tree keyed by claim name.
type Branch map[string]Node

func (Branch) isNode() {}

// Leaf holds a single JSON-serializable claim value.
type Leaf struct {
	Value interface{}
}

func (Leaf) isNode() {}

// MarshalJSON writes the leaf as its bare value.
func (l Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Value)
}

// UnmarshalJSON reads a JSON object into a Branch. Object values become
// nested branches, everything else becomes a leaf.
func (b *Branch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Branch, len(raw))
	for name, msg := range raw {
		node, err := unmarshalNode(msg)
		if err != nil {
			return fmt.Errorf("claim %q: %w", name, err)
		}
		out[name] = node
	}
	*b = out

	return nil
}

func unmarshalNode(msg json.RawMessage) (Node, error) {
	trimmed := bytes.TrimLeft(msg, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var nested Branch
		if err := json.Unmarshal(msg, &nested); err != nil {
			return nil, err
		}
		return nested, nil
	}

	var value interface{}
	if err := json.Unmarshal(msg, &value); err != nil {
		return nil, err
	}
	return Leaf{Value: value}, nil
}

// FromMap builds a claim tree from a plain nested map. Values of type
// map[string]interface{} become branches, everything else leaves.
func FromMap(claims map[string]interface{}) Branch {
	out := make(Branch, len(claims))
	for name, value := range claims {
		if nested, ok := value.(map[string]interface{}); ok {
			out[name] = FromMap(nested)
		} else {
			out[name] = Leaf{Value: value}
		}
	}
	return out
}

// ToMap converts the tree back to a plain nested map.
func (b Branch) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(b))
	for name, node := range b {
		switch n := node.(type) {
		case Branch:
			out[name] = n.ToMap()
		case Leaf:
			out[name] = n.Value
		}
	}
	return out
}

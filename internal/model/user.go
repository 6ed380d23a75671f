// Package model holds the demo user records whose claims get issued as
// SD-JWT credentials.
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ory/go-convenience/stringslice"

	"github.com/kokukuma/sdjwt-demo/sdjwt"
)

type Users struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewUsers() *Users {
	return &Users{
		users: make(map[string]*User),
	}
}

func (u *Users) GetUser(name string) (*User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	user, ok := u.users[name]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (u *Users) AddUser(name string, claims map[string]interface{}) (*User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	user := &User{
		id:     id.String(),
		name:   name,
		claims: claims,
	}
	u.users[name] = user
	return user, nil
}

// Seed registers the demo users the server starts with.
func Seed() (*Users, error) {
	users := NewUsers()
	_, err := users.AddUser("john_doe", map[string]interface{}{
		"given_name":   "John",
		"family_name":  "Doe",
		"email":        "johndoe@example.com",
		"phone_number": "+1-202-555-0101",
		"address": map[string]interface{}{
			"street_address": "123 Main St",
			"locality":       "Anytown",
			"region":         "Anystate",
			"country":        "US",
		},
		"birthdate": "1940-01-01",
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

type User struct {
	id     string
	name   string
	claims map[string]interface{}
}

func (u *User) Name() string {
	return u.name
}

// Claims returns the user's full claim tree, with the registry id as sub.
func (u *User) Claims() sdjwt.Branch {
	tree := sdjwt.FromMap(u.claims)
	tree["sub"] = sdjwt.Leaf{Value: u.id}
	return tree
}

// ClaimNames flattens the claim tree into sorted dotted paths
// ("address.locality"), the names a wallet UI offers for selection.
func (u *User) ClaimNames() []string {
	names := flatten("", u.Claims())
	sort.Strings(names)
	return names
}

// SelectClaims builds the chosen-claims overlay for a release from dotted
// claim names. Unknown names are rejected before anything is signed.
func (u *User) SelectClaims(names []string) (sdjwt.Branch, error) {
	known := u.ClaimNames()

	overlay := sdjwt.Branch{}
	for _, name := range names {
		if !stringslice.Has(known, name) {
			return nil, fmt.Errorf("unknown claim: %s", name)
		}
		insert(overlay, strings.Split(name, "."))
	}
	return overlay, nil
}

func flatten(prefix string, tree sdjwt.Branch) []string {
	var names []string
	for name, node := range tree {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if nested, ok := node.(sdjwt.Branch); ok {
			names = append(names, flatten(path, nested)...)
			continue
		}
		names = append(names, path)
	}
	return names
}

func insert(tree sdjwt.Branch, path []string) {
	name := path[0]
	if len(path) == 1 {
		tree[name] = sdjwt.Leaf{Value: true}
		return
	}

	nested, ok := tree[name].(sdjwt.Branch)
	if !ok {
		nested = sdjwt.Branch{}
		tree[name] = nested
	}
	insert(nested, path[1:])
}

package accounting

import (
	"fmt"
	"sort"
)

// LevelForCode derives the hierarchy level from the code length:
// 1 digit is level 1, 2 digits level 2, then every two more digits add a level.
func LevelForCode(code string) (int, error) {
	if err := validateCode(code); err != nil {
		return 0, err
	}
	n := len(code)
	if n == 1 {
		return 1, nil
	}
	return n/2 + 1, nil
}

// ParentCode returns the code of the parent account, or "" for level 1 codes.
// Invalid codes have no parent.
func ParentCode(code string) string {
	if validateCode(code) != nil {
		return ""
	}
	switch n := len(code); {
	case n == 1:
		return ""
	case n == 2:
		return code[:1]
	default:
		return code[:n-2]
	}
}

func validateCode(code string) error {
	n := len(code)
	if n == 0 {
		return fmt.Errorf("%w: empty code", ErrInvalidAccountCode)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q must contain digits only", ErrInvalidAccountCode, code)
		}
	}
	if n > 1 && n%2 != 0 {
		return fmt.Errorf("%w: %q has %d digits", ErrInvalidAccountCode, code, n)
	}
	return nil
}

// ChartTree is an arena of accounts ordered by code with a code index.
// Parent and child relations are derived from code prefixes, never stored as
// pointers.
type ChartTree struct {
	nodes    []Account
	index    map[string]int
	children map[string][]int
}

// BuildTree resolves every account's parent by code prefix and annotates
// Level, ParentCode and ParentID. It fails with OrphanAccountError when a
// non-root account's parent is missing from accounts.
func BuildTree(accounts []Account) (*ChartTree, error) {
	nodes := make([]Account, len(accounts))
	copy(nodes, accounts)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })

	tree := &ChartTree{
		nodes:    nodes,
		index:    make(map[string]int, len(nodes)),
		children: make(map[string][]int),
	}
	for i := range nodes {
		level, err := LevelForCode(nodes[i].Code)
		if err != nil {
			return nil, err
		}
		if _, dup := tree.index[nodes[i].Code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAccountCode, nodes[i].Code)
		}
		nodes[i].Level = level
		tree.index[nodes[i].Code] = i
	}
	for i := range nodes {
		parent := ParentCode(nodes[i].Code)
		if parent == "" {
			nodes[i].ParentCode = ""
			nodes[i].ParentID = nil
			continue
		}
		pi, ok := tree.index[parent]
		if !ok {
			return nil, &OrphanAccountError{Code: nodes[i].Code, ParentCode: parent}
		}
		nodes[i].ParentCode = parent
		if id := nodes[pi].ID; id != 0 {
			nodes[i].ParentID = &id
		} else {
			nodes[i].ParentID = nil
		}
		tree.children[parent] = append(tree.children[parent], i)
	}
	return tree, nil
}

// Len returns the number of accounts in the tree.
func (t *ChartTree) Len() int { return len(t.nodes) }

// Accounts returns the annotated accounts ordered by code.
func (t *ChartTree) Accounts() []Account {
	out := make([]Account, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Get looks up an account by code.
func (t *ChartTree) Get(code string) (Account, bool) {
	i, ok := t.index[code]
	if !ok {
		return Account{}, false
	}
	return t.nodes[i], true
}

// Parent returns the parent of code, if any.
func (t *ChartTree) Parent(code string) (Account, bool) {
	parent := ParentCode(code)
	if parent == "" {
		return Account{}, false
	}
	return t.Get(parent)
}

// Children returns direct children of code ordered by code.
func (t *ChartTree) Children(code string) []Account {
	idx := t.children[code]
	out := make([]Account, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.nodes[i])
	}
	return out
}

// Roots returns the level 1 accounts.
func (t *ChartTree) Roots() []Account {
	var out []Account
	for _, node := range t.nodes {
		if node.ParentCode == "" {
			out = append(out, node)
		}
	}
	return out
}

// Descendants returns every account below code in depth-first code order.
func (t *ChartTree) Descendants(code string) []Account {
	var out []Account
	var walk func(string)
	walk = func(c string) {
		for _, i := range t.children[c] {
			out = append(out, t.nodes[i])
			walk(t.nodes[i].Code)
		}
	}
	walk(code)
	return out
}

// Ancestor returns the ancestor of code at level, or the account itself when
// its level is already at or above level.
func (t *ChartTree) Ancestor(code string, level int) (Account, bool) {
	current, ok := t.Get(code)
	for ok && current.Level > level {
		current, ok = t.Parent(current.Code)
	}
	return current, ok
}

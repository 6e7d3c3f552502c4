// Package name interns the short identifiers used for type, module and
// property names so they compare as integers.
package name

import (
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Name is an index into the process name table. The zero Name is "".
type Name uint32

type table struct {
	mu      sync.RWMutex
	strings []string
	index   map[string]Name
}

var names = newTable()

func newTable() *table {
	return &table{
		strings: []string{""},
		index:   map[string]Name{"": 0},
	}
}

// Of interns s after NFC normalisation, so canonically equivalent spellings
// share one Name.
func Of(s string) Name {
	return names.intern(norm.NFC.String(s))
}

// Lookup returns the Name for s without interning it.
func Lookup(s string) (Name, bool) {
	names.mu.RLock()
	defer names.mu.RUnlock()
	n, ok := names.index[norm.NFC.String(s)]
	return n, ok
}

func (n Name) String() string {
	names.mu.RLock()
	defer names.mu.RUnlock()
	if int(n) >= len(names.strings) {
		return ""
	}
	return names.strings[n]
}

func (n Name) IsEmpty() bool { return n == 0 }

func (t *table) intern(s string) Name {
	t.mu.RLock()
	n, ok := t.index[s]
	t.mu.RUnlock()
	if ok {
		return n
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.index[s]; ok {
		return n
	}
	n = Name(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = n
	return n
}

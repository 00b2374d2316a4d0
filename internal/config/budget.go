package config

// Entry is one metric budget.
type Entry struct {
	Key       string
	Threshold Threshold
}

// Budget is an ordered metric-key to threshold mapping. Order is the order in
// which keys appeared in the project descriptor.
type Budget struct {
	entries []Entry
	index   map[string]int
}

// NewBudget builds a Budget, rejecting empty and duplicate keys.
func NewBudget(entries ...Entry) (Budget, error) {
	b := Budget{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Key == "" {
			return Budget{}, newConfigError("budget", "empty metric key")
		}
		if _, dup := b.index[e.Key]; dup {
			return Budget{}, newConfigError("budget."+e.Key, "duplicate metric key")
		}
		b.index[e.Key] = len(b.entries)
		b.entries = append(b.entries, e)
	}
	return b, nil
}

// MustBudget is NewBudget for literals in tests and defaults; it panics on error.
func MustBudget(entries ...Entry) Budget {
	b, err := NewBudget(entries...)
	if err != nil {
		panic(err)
	}
	return b
}

// Len returns the number of metric budgets.
func (b Budget) Len() int { return len(b.entries) }

// Entries returns a copy of the budget in insertion order.
func (b Budget) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Keys returns the metric keys in insertion order.
func (b Budget) Keys() []string {
	keys := make([]string, len(b.entries))
	for i, e := range b.entries {
		keys[i] = e.Key
	}
	return keys
}

// Get looks up the threshold for key.
func (b Budget) Get(key string) (Threshold, bool) {
	i, ok := b.index[key]
	if !ok {
		return Threshold{}, false
	}
	return b.entries[i].Threshold, true
}

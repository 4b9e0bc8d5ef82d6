package store

// Record is the storage-level shape of one resource instance.
//
// Attrs values use the native Go types of the attribute kinds: string,
// int64, float64, bool. A nil value means the attribute is unset (NULL).
// ToOne values are nil when the relationship is unset. ToMany holds the
// identifiers of related resources in insertion order.
type Record struct {
	Type   string
	ID     string
	Attrs  map[string]any
	ToOne  map[string]*string
	ToMany map[string][]string
}

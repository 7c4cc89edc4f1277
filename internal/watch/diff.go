package watch

// NewItems returns the items of fetched whose value is not in known,
// preserving fetch order. Comparison is exact string equality.
func NewItems(fetched []string, known map[string]struct{}) []string {
	fresh := make([]string, 0, len(fetched))
	for _, item := range fetched {
		if _, seen := known[item]; seen {
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

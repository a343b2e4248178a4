package model

// Person is a single record of the people collection.
// This is a pure domain model with no database-specific tags; each store backend
// maps it to its own row or document type.
type Person struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Age           *int     `json:"age,omitempty"`
	FavoriteFoods []string `json:"favoriteFoods"`
}

// Clone returns a deep copy so callers never share the FavoriteFoods backing array.
func (p Person) Clone() Person {
	out := p
	if p.Age != nil {
		age := *p.Age
		out.Age = &age
	}
	if p.FavoriteFoods != nil {
		out.FavoriteFoods = append(make([]string, 0, len(p.FavoriteFoods)), p.FavoriteFoods...)
	}
	return out
}

// IntPtr is a small helper for building optional ages.
func IntPtr(v int) *int {
	return &v
}

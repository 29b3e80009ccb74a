package schema

// Constraints is the numeric, string, array, and object bound set of a
// schema. Nil pointers mean the bound is absent.
type Constraints struct {
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64

	MinLength *int
	MaxLength *int
	Pattern   string

	MinItems    *int
	MaxItems    *int
	UniqueItems bool

	MinProperties *int
	MaxProperties *int
}

// Empty reports whether no bound is set.
func (c Constraints) Empty() bool {
	return c.Minimum == nil && c.Maximum == nil &&
		c.ExclusiveMinimum == nil && c.ExclusiveMaximum == nil &&
		c.MultipleOf == nil &&
		c.MinLength == nil && c.MaxLength == nil && c.Pattern == "" &&
		c.MinItems == nil && c.MaxItems == nil && !c.UniqueItems &&
		c.MinProperties == nil && c.MaxProperties == nil
}

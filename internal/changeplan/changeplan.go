// Package changeplan computes the create/update/delete steps that turn a
// current collection into a desired one, and applies those steps to
// association tables.
package changeplan

// Plan is the result of comparing a current collection with a desired one.
// Create and Update hold desired items, Delete and Unchanged hold current items.
type Plan[T any] struct {
	Create    []T
	Update    []T
	Delete    []T
	Unchanged []T
}

// Counts summarizes a plan.
type Counts struct {
	Create    int `json:"created"`
	Update    int `json:"updated"`
	Delete    int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Add returns the element-wise sum of two counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Create:    c.Create + o.Create,
		Update:    c.Update + o.Update,
		Delete:    c.Delete + o.Delete,
		Unchanged: c.Unchanged + o.Unchanged,
	}
}

// IsEmpty reports whether applying the plan would change nothing.
func (p Plan[T]) IsEmpty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Counts returns the size of each bucket.
func (p Plan[T]) Counts() Counts {
	return Counts{
		Create:    len(p.Create),
		Update:    len(p.Update),
		Delete:    len(p.Delete),
		Unchanged: len(p.Unchanged),
	}
}

// Compute matches items by key. Items whose key is empty are ignored and the
// first occurrence of a duplicate key wins. Create and Update follow the order
// of desired; Delete and Unchanged follow the order of current.
//
// When equal is nil every matched pair is unchanged.
func Compute[T any](current, desired []T, key func(T) string, equal func(current, desired T) bool) Plan[T] {
	var plan Plan[T]

	existing := make(map[string]T, len(current))
	order := make([]string, 0, len(current))
	for _, item := range current {
		k := key(item)
		if k == "" {
			continue
		}
		if _, dup := existing[k]; dup {
			continue
		}
		existing[k] = item
		order = append(order, k)
	}

	wanted := make(map[string]struct{}, len(desired))
	changed := make(map[string]struct{})
	for _, item := range desired {
		k := key(item)
		if k == "" {
			continue
		}
		if _, dup := wanted[k]; dup {
			continue
		}
		wanted[k] = struct{}{}

		cur, ok := existing[k]
		if !ok {
			plan.Create = append(plan.Create, item)
			continue
		}
		if equal != nil && !equal(cur, item) {
			plan.Update = append(plan.Update, item)
			changed[k] = struct{}{}
		}
	}

	for _, k := range order {
		if _, ok := wanted[k]; !ok {
			plan.Delete = append(plan.Delete, existing[k])
			continue
		}
		if _, ok := changed[k]; !ok {
			plan.Unchanged = append(plan.Unchanged, existing[k])
		}
	}

	return plan
}

package core

import (
	"fmt"
	"strings"
)

// Ids of the catch-all category of each type.
const (
	OtherExpenseID = "other_expense"
	OtherIncomeID  = "other_income"
)

// Category is static reference data. Records join to it by ID; Name is
// display-only.
type Category struct {
	ID    string
	Name  string
	Icon  string
	Color string
	Type  TransactionType
}

var (
	expenseCategories = []Category{
		{ID: "food", Name: "餐饮", Icon: "🍔", Color: "bg-orange-100 text-orange-600", Type: Expense},
		{ID: "transport", Name: "交通", Icon: "🚗", Color: "bg-blue-100 text-blue-600", Type: Expense},
		{ID: "shopping", Name: "购物", Icon: "🛍️", Color: "bg-pink-100 text-pink-600", Type: Expense},
		{ID: "entertainment", Name: "娱乐", Icon: "🎮", Color: "bg-purple-100 text-purple-600", Type: Expense},
		{ID: "housing", Name: "居住", Icon: "🏠", Color: "bg-indigo-100 text-indigo-600", Type: Expense},
		{ID: "medical", Name: "医疗", Icon: "💊", Color: "bg-red-100 text-red-600", Type: Expense},
		{ID: OtherExpenseID, Name: "其他", Icon: "📝", Color: "bg-gray-100 text-gray-600", Type: Expense},
	}

	incomeCategories = []Category{
		{ID: "salary", Name: "工资", Icon: "💰", Color: "bg-green-100 text-green-600", Type: Income},
		{ID: "bonus", Name: "奖金", Icon: "💎", Color: "bg-emerald-100 text-emerald-600", Type: Income},
		{ID: "investment", Name: "理财", Icon: "📈", Color: "bg-cyan-100 text-cyan-600", Type: Income},
		{ID: OtherIncomeID, Name: "其他", Icon: "🧧", Color: "bg-gray-100 text-gray-600", Type: Income},
	}

	defaultRegistry = mustRegistry(append(append([]Category(nil), expenseCategories...), incomeCategories...))
)

// Registry is an immutable, ordered category table. It is safe for
// concurrent use because nothing mutates it after construction.
type Registry struct {
	list  []Category
	byID  map[string]Category
	other map[TransactionType]Category
}

// DefaultRegistry returns the built-in categories.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry. Ids must be unique, names must be unique
// within a type, and each type needs exactly one catch-all category.
func NewRegistry(cats []Category) (*Registry, error) {
	r := &Registry{
		list:  make([]Category, 0, len(cats)),
		byID:  make(map[string]Category, len(cats)),
		other: make(map[TransactionType]Category, 2),
	}
	names := map[TransactionType]map[string]bool{Expense: {}, Income: {}}
	for _, c := range cats {
		if c.ID == "" {
			return nil, fmt.Errorf("category %q: empty id", c.Name)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("category %q: %w", c.ID, ErrInvalidType)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("category %q: duplicate id", c.ID)
		}
		if names[c.Type][c.Name] {
			return nil, fmt.Errorf("category %q: duplicate %s name %q", c.ID, c.Type, c.Name)
		}
		names[c.Type][c.Name] = true
		r.byID[c.ID] = c
		r.list = append(r.list, c)
		if c.ID == OtherExpenseID || c.ID == OtherIncomeID {
			if c.ID == OtherExpenseID && c.Type != Expense || c.ID == OtherIncomeID && c.Type != Income {
				return nil, fmt.Errorf("category %q: %w", c.ID, ErrCategoryTypeMismatch)
			}
			r.other[c.Type] = c
		}
	}
	for _, t := range []TransactionType{Expense, Income} {
		if _, ok := r.other[t]; !ok {
			return nil, fmt.Errorf("registry has no catch-all %s category", t)
		}
	}
	return r, nil
}

func mustRegistry(cats []Category) *Registry {
	r, err := NewRegistry(cats)
	if err != nil {
		panic(err)
	}
	return r
}

// ByID looks up a category by its stable identifier.
func (r *Registry) ByID(id string) (Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ByName looks up a category by exact display name within a type. Names are
// only unique per type ("其他" exists for both).
func (r *Registry) ByName(t TransactionType, name string) (Category, bool) {
	for _, c := range r.list {
		if c.Type == t && c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Resolve maps an id or an exact display name to a category of type t.
func (r *Registry) Resolve(t TransactionType, ref string) (Category, error) {
	ref = strings.TrimSpace(ref)
	if c, ok := r.byID[ref]; ok {
		if c.Type != t {
			return Category{}, ErrCategoryTypeMismatch
		}
		return c, nil
	}
	if c, ok := r.ByName(t, ref); ok {
		return c, nil
	}
	for _, c := range r.list {
		if c.Name == ref {
			return Category{}, ErrCategoryTypeMismatch
		}
	}
	return Category{}, ErrUnknownCategory
}

// Other returns the catch-all category for t.
func (r *Registry) Other(t TransactionType) Category {
	return r.other[t]
}

// List returns the categories of type t in display order, or all of them
// when t is empty.
func (r *Registry) List(t TransactionType) []Category {
	out := make([]Category, 0, len(r.list))
	for _, c := range r.list {
		if t == "" || c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the distinct display names in registry order.
func (r *Registry) Names() []string {
	seen := make(map[string]bool, len(r.list))
	out := make([]string, 0, len(r.list))
	for _, c := range r.list {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c.Name)
	}
	return out
}

// DisplayName returns the category name for id, or id itself when the
// registry does not know it.
func (r *Registry) DisplayName(id string) string {
	if c, ok := r.byID[id]; ok {
		return c.Name
	}
	return id
}

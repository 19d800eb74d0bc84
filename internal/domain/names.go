package domain

import "sort"

// NameSet - множество имен пользователей
type NameSet map[string]struct{}

func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Add возвращает true, если имя добавлено впервые
func (s NameSet) Add(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := s[name]; ok {
		return false
	}
	s[name] = struct{}{}
	return true
}

func (s NameSet) Remove(name string) bool {
	if _, ok := s[name]; !ok {
		return false
	}
	delete(s, name)
	return true
}

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s NameSet) Len() int {
	return len(s)
}

func (s NameSet) Clone() NameSet {
	c := make(NameSet, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

func (s NameSet) Union(other NameSet) NameSet {
	u := s.Clone()
	for n := range other {
		u[n] = struct{}{}
	}
	return u
}

func (s NameSet) Intersect(other NameSet) NameSet {
	i := make(NameSet)
	for n := range s {
		if other.Has(n) {
			i[n] = struct{}{}
		}
	}
	return i
}

func (s NameSet) Minus(other NameSet) NameSet {
	d := make(NameSet)
	for n := range s {
		if !other.Has(n) {
			d[n] = struct{}{}
		}
	}
	return d
}

// SubsetOf - все ли элементы s содержатся в other
func (s NameSet) SubsetOf(other NameSet) bool {
	for n := range s {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

func (s NameSet) Equal(other NameSet) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Sorted возвращает имена в стабильном порядке
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

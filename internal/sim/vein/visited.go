package vein

// VisitedSet is a sparse set of coordinates keyed x -> y -> z.
// The zero value is not usable; use NewVisitedSet.
type VisitedSet struct {
	xs map[int]map[int]map[int]struct{}
	n  int
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{xs: map[int]map[int]map[int]struct{}{}}
}

func (s *VisitedSet) Has(p Vec3i) bool {
	ys, ok := s.xs[p.X]
	if !ok {
		return false
	}
	zs, ok := ys[p.Y]
	if !ok {
		return false
	}
	_, ok = zs[p.Z]
	return ok
}

// Add inserts p and reports whether it was absent.
func (s *VisitedSet) Add(p Vec3i) bool {
	ys := s.xs[p.X]
	if ys == nil {
		ys = map[int]map[int]struct{}{}
		s.xs[p.X] = ys
	}
	zs := ys[p.Y]
	if zs == nil {
		zs = map[int]struct{}{}
		ys[p.Y] = zs
	}
	if _, ok := zs[p.Z]; ok {
		return false
	}
	zs[p.Z] = struct{}{}
	s.n++
	return true
}

func (s *VisitedSet) Len() int { return s.n }

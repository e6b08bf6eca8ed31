package vein

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// neighborOffsets fixes the expansion order: -x, +x, -y, +y, -z, +z.
var neighborOffsets = [6]Vec3i{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// Neighbors returns the 6 axis-aligned neighbors of v in expansion order.
func (v Vec3i) Neighbors() [6]Vec3i {
	var out [6]Vec3i
	for i, d := range neighborOffsets {
		out[i] = v.Add(d)
	}
	return out
}

package world

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9))
}

// inCluster3 reports whether (x,y,z) lies inside a spherical cluster. Each
// grid cell holds at most one cluster centre, present with probPermille.
func inCluster3(seed int64, x, y, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx, gy, gz := floorDiv(x, grid), floorDiv(y, grid), floorDiv(z, grid)
	r2 := radius * radius
	for dy := -1; dy <= 1; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				cgx, cgy, cgz := gx+dx, gy+dy, gz+dz
				h := hash3(seed, cgx, cgy, cgz)
				if h%1000 >= probPermille {
					continue
				}
				cx := cgx*grid + int((h>>10)%uint64(grid))
				cy := cgy*grid + int((h>>20)%uint64(grid))
				cz := cgz*grid + int((h>>30)%uint64(grid))
				ddx, ddy, ddz := x-cx, y-cy, z-cz
				if ddx*ddx+ddy*ddy+ddz*ddz <= r2 {
					return true
				}
			}
		}
	}
	return false
}

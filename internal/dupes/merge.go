package dupes

// mergeSets is a union-find over track indices, used to merge
// fingerprint clusters with fuzzy pair matches. Only the scan collector
// goroutine touches it, so it is unsynchronized.
type mergeSets struct {
	parent []int
	rank   []int
}

func newMergeSets(n int) *mergeSets {
	m := &mergeSets{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range m.parent {
		m.parent[i] = i
	}
	return m
}

func (m *mergeSets) find(x int) int {
	for m.parent[x] != x {
		m.parent[x] = m.parent[m.parent[x]]
		x = m.parent[x]
	}
	return x
}

func (m *mergeSets) union(a, b int) {
	ra, rb := m.find(a), m.find(b)
	if ra == rb {
		return
	}
	if m.rank[ra] < m.rank[rb] {
		ra, rb = rb, ra
	}
	m.parent[rb] = ra
	if m.rank[ra] == m.rank[rb] {
		m.rank[ra]++
	}
}

package clusterer

import (
	"sync"

	"github.com/coder/hnsw"
)

// HNSW index tuning, carried over from the corpus's face-matching tuning:
// M (max neighbors per node) trades memory/build time for recall.
// hnswEfSearch is not applied to the graph; searches use the library's
// default.
const (
	hnswMaxNeighbors = 16
	hnswEfSearch     = 100

	// linearScanThreshold is the Person-count ceiling below which
	// CentroidIndex falls back to a plain linear scan. Below this size the
	// HNSW graph has no measurable benefit and a linear scan is simpler to
	// keep exactly correct (no approximate-search recall loss) for the
	// cluster-assignment decision.
	linearScanThreshold = 64
)

// Centroid pairs a Person ID with its unit-normalized centroid embedding.
type Centroid struct {
	PersonID int64
	Vector   []float32
}

// CentroidIndex accelerates nearest-centroid lookup across Persons. Build
// loads it from the Store's Person set (Clusterer.Refresh), and Upsert keeps
// it current after every assignment; above linearScanThreshold each Upsert
// rebuilds the HNSW graph, since centroids drift on every assignment and an
// approximate index that lags behind a single update is a correctness risk
// the clusterer cannot take silently.
type CentroidIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[int64]
	byPerson map[int64][]float32
}

// NewCentroidIndex returns an empty index; call Build before Nearest.
func NewCentroidIndex() *CentroidIndex {
	return &CentroidIndex{byPerson: make(map[int64][]float32)}
}

// Build replaces the index contents with the given centroids.
func (c *CentroidIndex) Build(centroids []Centroid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byPerson = make(map[int64][]float32, len(centroids))
	for _, cd := range centroids {
		c.byPerson[cd.PersonID] = cd.Vector
	}

	if len(centroids) < linearScanThreshold {
		c.graph = nil
		return
	}

	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	for _, cd := range centroids {
		g.Add(hnsw.MakeNode(cd.PersonID, cd.Vector))
	}
	c.graph = g
}

// Nearest returns the PersonID whose centroid minimizes CosineDistance to e,
// and that distance. Ties are broken by smallest PersonID. Returns
// ok=false if the index holds no Persons.
func (c *CentroidIndex) Nearest(e []float32) (personID int64, dist float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.byPerson) == 0 {
		return 0, 0, false
	}

	if c.graph == nil {
		return c.linearNearest(e)
	}

	neighbors := c.graph.Search(e, 4)
	if len(neighbors) == 0 {
		return c.linearNearest(e)
	}
	bestID := neighbors[0].Key
	bestDist := CosineDistance(e, c.byPerson[bestID])
	for _, n := range neighbors[1:] {
		d := CosineDistance(e, c.byPerson[n.Key])
		if d < bestDist || (d == bestDist && n.Key < bestID) {
			bestID, bestDist = n.Key, d
		}
	}
	return bestID, bestDist, true
}

// linearNearest scans every centroid; used below linearScanThreshold and as
// a fallback if the graph ever returns no candidates.
func (c *CentroidIndex) linearNearest(e []float32) (int64, float64, bool) {
	var bestID int64
	bestDist := 2.0
	first := true
	for id, centroid := range c.byPerson {
		d := CosineDistance(e, centroid)
		if first || d < bestDist || (d == bestDist && id < bestID) {
			bestID, bestDist, first = id, d, false
		}
	}
	return bestID, bestDist, !first
}

// vectorFor returns the currently indexed centroid for a Person, or nil if
// absent.
func (c *CentroidIndex) vectorFor(personID int64) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byPerson[personID]
}

// Count returns the number of Persons currently indexed.
func (c *CentroidIndex) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPerson)
}

// Upsert updates (or inserts) one Person's centroid. Below
// linearScanThreshold this is O(1); at or above it, the HNSW graph is
// rebuilt from scratch so a drifting centroid is never served stale out
// of the approximate index.
func (c *CentroidIndex) Upsert(personID int64, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byPerson[personID] = vector
	if c.graph == nil && len(c.byPerson) < linearScanThreshold {
		return
	}

	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	for id, v := range c.byPerson {
		g.Add(hnsw.MakeNode(id, v))
	}
	c.graph = g
}

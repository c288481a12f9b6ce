package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex implements VectorIndex on a coder/hnsw graph.
//
// Chunk IDs are strings; the graph is keyed by uint64, so an id arena maps
// between the two. Deletion is lazy: removing a chunk drops its arena entries
// but leaves the node in the graph, where it becomes an unreachable orphan
// (deleting graph nodes outright destabilizes small coder/hnsw graphs).
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorConfig

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64

	closed bool
}

var _ VectorIndex = (*HNSWIndex)(nil)

// hnswSidecar is the gob-encoded arena persisted next to the graph file.
type hnswSidecar struct {
	IDToKey map[string]uint64
	NextKey uint64
	Config  VectorConfig
}

// NewHNSWIndex creates an empty vector index for the given configuration.
func NewHNSWIndex(cfg VectorConfig) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector index requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch

	return &HNSWIndex{
		graph:   graph,
		config:  cfg,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
	}, nil
}

// Add inserts vectors keyed by chunk ID. An existing ID is replaced: its old
// graph node is orphaned and a fresh node inserted under a new key.
func (s *HNSWIndex) Add(ctx context.Context, chunkIDs []string, vectors [][]float32) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("chunk IDs and vectors length mismatch: %d vs %d", len(chunkIDs), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range chunkIDs {
		if oldKey, exists := s.idToKey[id]; exists {
			delete(s.keyToID, oldKey)
			delete(s.idToKey, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalize(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idToKey[id] = key
		s.keyToID[key] = id
	}

	return nil
}

// Search finds the k nearest live neighbors of query. Orphaned nodes are
// filtered out, so slightly fewer than k results can come back after heavy
// churn.
func (s *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}

	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" {
		normalize(q)
	}

	results := make([]*VectorResult, 0, k)
	for _, node := range s.graph.Search(q, k) {
		id, live := s.keyToID[node.Key]
		if !live {
			continue
		}
		distance := s.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ChunkID:  id,
			Distance: distance,
			Score:    similarityScore(distance, s.config.Metric),
		})
	}
	return results, nil
}

// Delete lazily removes vectors by chunk ID.
func (s *HNSWIndex) Delete(ctx context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, id := range chunkIDs {
		if key, exists := s.idToKey[id]; exists {
			delete(s.keyToID, key)
			delete(s.idToKey, id)
		}
	}
	return nil
}

// AllIDs returns every live vector ID.
func (s *HNSWIndex) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.idToKey))
	for id := range s.idToKey {
		ids = append(ids, id)
	}
	return ids
}

func (s *HNSWIndex) Contains(chunkID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	_, exists := s.idToKey[chunkID]
	return exists
}

func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idToKey)
}

// Orphans reports how many lazily-deleted nodes remain in the graph. A
// rebuild from stored embeddings reclaims them.
func (s *HNSWIndex) Orphans() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.graph.Len() - len(s.idToKey)
}

// Save persists the graph and its id arena sidecar, temp-file + rename for
// atomicity.
func (s *HNSWIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	if err := atomicWrite(path, func(f *os.File) error {
		return s.graph.Export(f)
	}); err != nil {
		return fmt.Errorf("export graph: %w", err)
	}

	sidecar := hnswSidecar{
		IDToKey: s.idToKey,
		NextKey: s.nextKey,
		Config:  s.config,
	}
	if err := atomicWrite(path+".meta", func(f *os.File) error {
		return gob.NewEncoder(f).Encode(sidecar)
	}); err != nil {
		return fmt.Errorf("save id arena: %w", err)
	}

	return nil
}

// Load restores the graph and id arena from disk.
func (s *HNSWIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open id arena: %w", err)
	}
	defer metaFile.Close()

	var sidecar hnswSidecar
	if err := gob.NewDecoder(metaFile).Decode(&sidecar); err != nil {
		return fmt.Errorf("decode id arena: %w", err)
	}

	s.idToKey = sidecar.IDToKey
	s.nextKey = sidecar.NextKey
	s.config = sidecar.Config
	s.keyToID = make(map[uint64]string, len(s.idToKey))
	for id, key := range s.idToKey {
		s.keyToID[key] = id
	}

	graphFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer graphFile.Close()

	// Import needs an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(graphFile)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// StoredDimensions reads the dimensionality recorded in an index sidecar on
// disk. Returns 0 when no sidecar exists yet.
func StoredDimensions(path string) (int, error) {
	f, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open id arena: %w", err)
	}
	defer f.Close()

	var sidecar hnswSidecar
	if err := gob.NewDecoder(f).Decode(&sidecar); err != nil {
		return 0, fmt.Errorf("decode id arena: %w", err)
	}
	return sidecar.Config.Dimensions, nil
}

// atomicWrite writes through a temp file renamed into place on success.
func atomicWrite(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// normalize scales v to unit length in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// similarityScore maps a distance to a 0-1 similarity. Cosine distance spans
// 0-2; L2 spans 0-infinity.
func similarityScore(distance float32, metric string) float32 {
	if metric == "l2" {
		return 1 / (1 + distance)
	}
	return 1 - distance/2
}

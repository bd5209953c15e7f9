package subset

// Indexer maps coordinates of an extracted subset to offsets in the flat
// output buffer. The column index varies fastest, the timestep slowest.
type Indexer struct {
	counts  [NumAxes]int
	strides [NumAxes]int
}

// NewIndexer lays out a subset with the given per-axis counts, ordered
// timestep, variable, layer, row, column.
func NewIndexer(counts [NumAxes]int) *Indexer {
	ix := &Indexer{counts: counts}
	stride := 1
	for a := NumAxes - 1; a >= 0; a-- {
		ix.strides[a] = stride
		stride *= counts[a]
	}
	return ix
}

// IndexerFor lays out the values an extraction of s produces.
func IndexerFor(s *Spec) *Indexer {
	var counts [NumAxes]int
	for a := Timestep; a < NumAxes; a++ {
		counts[a] = s.Count(a)
	}
	return NewIndexer(counts)
}

func (ix *Indexer) Counts() [NumAxes]int {
	return ix.counts
}

// Len is the total number of values.
func (ix *Indexer) Len() int {
	return ix.strides[Timestep] * ix.counts[Timestep]
}

// ChunkLen is the number of values in one layer x row x column volume.
func (ix *Indexer) ChunkLen() int {
	return ix.strides[Variable]
}

// ChunkOffset is where the volume of timestep t, variable v starts.
func (ix *Indexer) ChunkOffset(t, v int) int {
	return t*ix.strides[Timestep] + v*ix.strides[Variable]
}

// Offset returns the flat offset of (t, v, l, r, c).
func (ix *Indexer) Offset(t, v, l, r, c int) int {
	return t*ix.strides[Timestep] + v*ix.strides[Variable] +
		l*ix.strides[Layer] + r*ix.strides[Row] + c
}

// Coords is the inverse of Offset.
func (ix *Indexer) Coords(off int) (t, v, l, r, c int) {
	var out [NumAxes]int
	for a := Timestep; a < NumAxes; a++ {
		out[a] = off / ix.strides[a]
		off %= ix.strides[a]
	}
	return out[Timestep], out[Variable], out[Layer], out[Row], out[Column]
}

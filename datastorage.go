package ecsforge

import (
	"math"
	"reflect"
	"unsafe"
)

// Safety selects whether getData bounds-checks its index. Unsafe is used by
// the structural paths (insert, externalMove, swap-remove, builder and
// Assign writes), whose index comes straight from the entity's own slot;
// Get and ElementView.Component, which the job dispatcher's per-entity
// loop goes through, use Safe and return nil on an out-of-range access.
type Safety int

const (
	Safe Safety = iota
	Unsafe
)

const defaultBytesPerChunk = 16 * 1024

// column is one component's storage: a sequence of fixed-capacity chunks.
// Each chunk is its own reflect-backed array allocation, so growing the
// column never moves memory already handed out to a caller: growth always
// allocates whole new chunks.
type column struct {
	componentType reflect.Type
	itemSize      uintptr
	chunks        []reflect.Value // each: reflect.New(reflect.ArrayOf(capacity, componentType)).Elem()
	chunkBases    []unsafe.Pointer
}

func newColumn(tp reflect.Type) *column {
	size := tp.Size()
	align := uintptr(tp.Align())
	if align > 0 {
		size = (size + align - 1) / align * align
	}
	return &column{componentType: tp, itemSize: size}
}

func (c *column) growTo(chunkCount int, capacity uint32) {
	for len(c.chunks) < chunkCount {
		buf := reflect.New(reflect.ArrayOf(int(capacity), c.componentType)).Elem()
		c.chunks = append(c.chunks, buf)
		c.chunkBases = append(c.chunkBases, buf.Addr().UnsafePointer())
	}
}

func (c *column) at(safety Safety, chunkIndex int, offset uint32) unsafe.Pointer {
	if safety == Safe {
		if chunkIndex < 0 || chunkIndex >= len(c.chunkBases) {
			return nil
		}
	}
	if c.itemSize == 0 {
		return c.chunkBases[chunkIndex]
	}
	return unsafe.Add(c.chunkBases[chunkIndex], uintptr(offset)*c.itemSize)
}

// copyPointers copies one item's raw bytes from src to dst. It is used for
// the trivial (no Move/Destroy registered) fast path; non-trivial
// components must instead route through their registered Move function in
// archetype.go.
func (c *column) copyPointers(dst, src unsafe.Pointer) {
	if c.itemSize == 0 || dst == nil || src == nil {
		return
	}
	dstSlice := (*[math.MaxInt32]byte)(dst)[:c.itemSize:c.itemSize]
	srcSlice := (*[math.MaxInt32]byte)(src)[:c.itemSize:c.itemSize]
	copy(dstSlice, srcSlice)
}

func (c *column) zero(safety Safety, chunkIndex int, offset uint32) {
	if c.itemSize == 0 {
		return
	}
	ptr := c.at(safety, chunkIndex, offset)
	if ptr == nil {
		return
	}
	dst := (*[math.MaxInt32]byte)(ptr)[:c.itemSize:c.itemSize]
	for i := range dst {
		dst[i] = 0
	}
}

func (c *column) writeDefault(safety Safety, chunkIndex int, offset uint32, def []byte) {
	if len(def) == 0 {
		return
	}
	ptr := c.at(safety, chunkIndex, offset)
	if ptr == nil {
		return
	}
	dst := (*[math.MaxInt32]byte)(ptr)[:len(def):len(def)]
	copy(dst, def)
}

// chunkVersions holds one WorldVersion per (chunk, column) pair, the unit
// of change-detection the job dispatcher stamps and the world-filter reads.
type chunkVersions struct {
	perColumn [][]WorldVersion // perColumn[columnIdx][chunkIdx]
}

func (v *chunkVersions) growTo(columnCount, chunkCount int) {
	for len(v.perColumn) < columnCount {
		v.perColumn = append(v.perColumn, nil)
	}
	for ci := 0; ci < columnCount; ci++ {
		for len(v.perColumn[ci]) < chunkCount {
			v.perColumn[ci] = append(v.perColumn[ci], 0)
		}
	}
}

func (v *chunkVersions) get(columnIdx, chunkIdx int) WorldVersion {
	if columnIdx < 0 || columnIdx >= len(v.perColumn) {
		return 0
	}
	col := v.perColumn[columnIdx]
	if chunkIdx < 0 || chunkIdx >= len(col) {
		return 0
	}
	return col[chunkIdx]
}

// stamp is non-decreasing: a chunk's version must only ever move forward.
func (v *chunkVersions) stamp(columnIdx, chunkIdx int, version WorldVersion) {
	if columnIdx < 0 || columnIdx >= len(v.perColumn) {
		return
	}
	col := v.perColumn[columnIdx]
	if chunkIdx < 0 || chunkIdx >= len(col) {
		return
	}
	if col[chunkIdx] < version {
		col[chunkIdx] = version
	}
}

// dataStorage is the chunked SoA backing for one archetype: N component
// columns, each split into fixed-capacity chunks, plus the per-(chunk,
// column) version stamps that drive change detection.
type dataStorage struct {
	chunkCapacity uint32
	columns       []*column
	versions      chunkVersions
	length        uint32 // live entity count; storageIndex < length is occupied
	chunkCount    int
}

// chooseChunkCapacity picks the number of entities per chunk so that one
// chunk of all columns combined targets defaultBytesPerChunk (minimum 1,
// constant for the archetype's lifetime).
func chooseChunkCapacity(columnSizes []uintptr) uint32 {
	var perEntity uintptr
	for _, s := range columnSizes {
		perEntity += s
	}
	if perEntity == 0 {
		return 4096
	}
	cap := defaultBytesPerChunk / perEntity
	if cap < 1 {
		cap = 1
	}
	return uint32(cap)
}

func newDataStorage(types []reflect.Type) *dataStorage {
	sizes := make([]uintptr, len(types))
	columns := make([]*column, len(types))
	for i, tp := range types {
		columns[i] = newColumn(tp)
		sizes[i] = columns[i].itemSize
	}
	ds := &dataStorage{
		chunkCapacity: chooseChunkCapacity(sizes),
		columns:       columns,
	}
	return ds
}

func (ds *dataStorage) locate(storageIndex uint32) (chunk int, offset uint32) {
	chunk = int(storageIndex / ds.chunkCapacity)
	offset = storageIndex % ds.chunkCapacity
	return
}

// ensureCapacity grows every column (and the version table) so that
// storageIndex is addressable.
func (ds *dataStorage) ensureCapacity(storageIndex uint32) {
	neededChunk := int(storageIndex/ds.chunkCapacity) + 1
	if neededChunk <= ds.chunkCount {
		return
	}
	for _, c := range ds.columns {
		c.growTo(neededChunk, ds.chunkCapacity)
	}
	ds.versions.growTo(len(ds.columns), neededChunk)
	ds.chunkCount = neededChunk
}

// pushBack reserves the next storage index and returns it. It never frees
// chunks and never shrinks: callers calling popBack later reuse the same
// high-water chunks.
func (ds *dataStorage) pushBack() uint32 {
	idx := ds.length
	ds.ensureCapacity(idx)
	ds.length++
	return idx
}

// popBack shrinks the logical length by one without releasing any chunk.
func (ds *dataStorage) popBack() {
	if ds.length > 0 {
		ds.length--
	}
}

func (ds *dataStorage) getData(safety Safety, col ComponentIndex, storageIndex uint32) unsafe.Pointer {
	if safety == Safe && (int(col) < 0 || int(col) >= len(ds.columns) || storageIndex >= ds.length) {
		return nil
	}
	chunkIdx, offset := ds.locate(storageIndex)
	return ds.columns[col].at(safety, chunkIdx, offset)
}


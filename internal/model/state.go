package model

// IndexStatus is the indexing lifecycle of a source item.
type IndexStatus int

const (
	// StatusNotIndexed 尚未尝试索引
	StatusNotIndexed IndexStatus = iota
	// StatusIndexed 索引成功
	StatusIndexed
	// StatusFailed 最近一次索引失败，可重试
	StatusFailed
)

func (s IndexStatus) String() string {
	switch s {
	case StatusIndexed:
		return "indexed"
	case StatusFailed:
		return "failed"
	default:
		return "not_indexed"
	}
}

// IndexState is NotIndexed, Indexed{ChunkCount} or Failed. Only the
// constructors below build it, so a chunk count exists only when indexed.
type IndexState struct {
	status     IndexStatus
	chunkCount int
}

// NotIndexed is the state of a freshly created item.
func NotIndexed() IndexState { return IndexState{status: StatusNotIndexed} }

// Indexed is the state after a successful run that stored n chunks.
func Indexed(n int) IndexState { return IndexState{status: StatusIndexed, chunkCount: n} }

// Failed is the state after a failed run.
func Failed() IndexState { return IndexState{status: StatusFailed} }

func (s IndexState) Status() IndexStatus { return s.status }
func (s IndexState) IsIndexed() bool     { return s.status == StatusIndexed }

// ChunkCount is zero unless the item is indexed.
func (s IndexState) ChunkCount() int { return s.chunkCount }

// wire encodes the state as the tri-state `indexed` flag plus chunk_count:
// false = not indexed, true = indexed, null = failed.
func (s IndexState) wire() (indexed *bool, chunkCount *int) {
	switch s.status {
	case StatusIndexed:
		t, n := true, s.chunkCount
		return &t, &n
	case StatusFailed:
		return nil, nil
	default:
		f := false
		return &f, nil
	}
}

func stateFromWire(indexed *bool, chunkCount *int) IndexState {
	switch {
	case indexed == nil:
		return Failed()
	case *indexed:
		n := 0
		if chunkCount != nil {
			n = *chunkCount
		}
		return Indexed(n)
	default:
		return NotIndexed()
	}
}

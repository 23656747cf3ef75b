// Package chunker divides long section text into overlapping windows for embedding.
//
// Windows are measured in Unicode code points, never bytes, so multi-byte
// characters such as emoji or CJK text are never split.
//
// # Basic Usage
//
//	c := chunker.New(2000, 200)
//	if c.NeedsSplit(sectionText) {
//	    for ch := range c.Chunks(sectionText) {
//	        fmt.Printf("chunk %d: [%d, %d)\n", ch.Index, ch.Start, ch.End)
//	    }
//	}
//
// # Window Law
//
// Every chunk holds at most Size code points. Chunk k+1 starts Overlap code
// points before chunk k ends, and iteration stops after the chunk that reaches
// the end of the text. Text of at most Size code points is a single chunk.
//
// An overlap that is not smaller than the size is reduced to size/4, and a
// non-positive size selects DefaultSize and DefaultOverlap.
//
// The sequence returned by Chunks is lazy and restartable: ranging over it
// twice produces the same chunks.
package chunker

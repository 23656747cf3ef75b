// Package searcher implements semantic search over the knowledge base index.
//
// # Basic Usage
//
//	s := searcher.New(store, emb, logger)
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query:     "how do we branch",
//	    Limit:     5,
//	    Threshold: 0.3,
//	    Kind:      types.KindGuide,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s (%.4f) matched %s\n", r.Rank, r.Title, r.Score, r.MatchedID)
//	}
//
// # Ranking
//
// Every stored record (document, section or chunk) is scored by cosine
// similarity against the query vector. Records below Threshold are dropped
// and the rest are sorted by score, ties broken by id.
//
// # Parent Promotion
//
// Unless Raw is set, hits are grouped by slug and only the best one per
// document survives. The result carries the document's title, tags, uuid
// and content, while MatchedID, MatchedType and MatchedContent describe the
// section or chunk that actually scored. A hit whose document is gone is
// skipped.
package searcher

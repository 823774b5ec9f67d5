// Package docpipe wires the document pipeline together.
//
// A Pipeline owns the job queue, the document and blob stores, the
// embedder, the vector store and the notification manager. Uploads are
// validated, stored and enqueued here; workers built from the same
// Pipeline consume the queue, and the retrieval path answers queries
// against what they indexed.
//
//	p, err := docpipe.Open(ctx, cfg)
//	...
//	group, err := p.NewGroup(4)
//	group.Start(ctx)
//	doc, err := p.Upload(ctx, "u1", "report.pdf", data, "")
//	refs, err := p.Search(ctx, "u1", "what grew in Q3?")
package docpipe

// Package atomic implements the processing pipeline for the JSON:API
// Atomic Operations extension.
//
// A batch request travels through the pipeline in stages:
//
//	document -> Parser (typed operations) -> Resolver (local ID
//	substitution) -> Executor (persistence calls) -> results
//
// The Processor owns the stages and wraps every execution in one storage
// transaction: either every operation commits, or the first failure rolls
// the whole batch back and becomes the response's single error.
//
// All state is request-scoped. The local ID tracker and the open
// transaction are created per batch and discarded afterwards, so the
// pipeline needs no locking; concurrent batches are isolated by the
// storage layer's transaction semantics.
package atomic

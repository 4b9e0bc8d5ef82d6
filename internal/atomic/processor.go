package atomic

import (
	"context"
	"log/slog"

	"github.com/openarc/strata/internal/jsonapi"
	"github.com/openarc/strata/internal/schema"
	"github.com/openarc/strata/internal/store"
)

// Processor runs atomic operation batches. Each call to Process parses,
// resolves, and executes one batch inside a single transaction: either
// every operation commits or none do.
type Processor struct {
	store  *store.Store
	parser *Parser
	idgen  IDGenerator
	logger *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithIDGenerator overrides the generator for server-assigned IDs.
// The default assigns random UUIDs.
func WithIDGenerator(g IDGenerator) ProcessorOption {
	return func(p *Processor) {
		p.idgen = g
	}
}

// WithProcessorLogger sets the logger for batch processing.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = l
	}
}

// NewProcessor creates a processor over the given store and registry.
func NewProcessor(s *store.Store, reg *schema.Registry, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:  s,
		parser: NewParser(reg),
		idgen:  UUIDGenerator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one batch. On success it returns one result per
// operation, in request order; operations without an observable result
// contribute a null-data entry. On failure it returns the single error
// that aborted the batch, and no persistent state changes.
//
// The whole document is parsed and validated before the transaction
// opens, so a structurally invalid batch never touches the database.
// Local ID resolution and execution then interleave per operation,
// because a local ID only becomes resolvable once the declaring create
// has executed.
func (p *Processor) Process(ctx context.Context, doc *jsonapi.OperationsDocument) ([]jsonapi.Result, *Error) {
	ops, perr := p.parser.ParseDocument(doc)
	if perr != nil {
		return nil, perr
	}

	p.logger.Debug("processing batch", "operations", len(ops))

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, newInternalError("", err)
	}
	defer tx.Rollback() // No-op if committed

	tracker := NewLocalIDTracker()
	resolver := NewResolver(tracker)
	executor := NewExecutor(tx, tracker, p.idgen, p.logger)

	results := make([]jsonapi.Result, 0, len(ops))
	for _, op := range ops {
		if rerr := resolver.Resolve(op); rerr != nil {
			p.logger.Debug("batch aborted during resolution",
				"index", op.Index, "code", rerr.Code)
			return nil, rerr
		}

		res, xerr := executor.Execute(ctx, op)
		if xerr != nil {
			p.logger.Debug("batch aborted during execution",
				"index", op.Index, "code", xerr.Code)
			return nil, xerr
		}
		results = append(results, jsonapi.Result{Data: res})
	}

	if err := tx.Commit(); err != nil {
		return nil, newInternalError("", err)
	}

	p.logger.Info("batch committed", "operations", len(ops))
	return results, nil
}

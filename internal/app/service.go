// Package app wires the protection run together: fetch positions, evaluate
// each long position through the transition engine, aggregate the outcome and
// journal it.
package app

import (
	"context"
	"fmt"
	"time"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/policy"
	"stopkeeper/internal/ports"
	"stopkeeper/internal/protection"
)

// Service orchestrates one protection pass per invocation. Stateless across
// runs; every entity is re-fetched fresh from the broker each time.
type Service struct {
	broker   ports.BrokerClient
	resolver *policy.Resolver
	engine   *protection.Engine
	journal  ports.RunJournal
	logger   ports.Logger
}

// NewService creates the run orchestrator. The journal may be nil when no
// audit trail is wanted (tests, dry environments).
func NewService(broker ports.BrokerClient, resolver *policy.Resolver, engine *protection.Engine, journal ports.RunJournal, logger ports.Logger) (*Service, error) {
	if broker == nil || resolver == nil || engine == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for app service")
	}
	return &Service{
		broker:   broker,
		resolver: resolver,
		engine:   engine,
		journal:  journal,
		logger:   logger,
	}, nil
}

// RunReport aggregates one protection pass.
type RunReport struct {
	PositionsSeen int
	LongPositions int
	OrdersCreated int
	Failures      int // symbols whose evaluation returned an error
	Results       []*protection.Result
}

// RunOnce performs a single protection pass over all long positions. A
// symbol's unrecoverable failure is counted and logged but never aborts the
// processing of other symbols; only a broker failure on the initial position
// fetch fails the run as a whole.
func (s *Service) RunOnce(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}
	run := &domain.RunRecord{StartedAt: time.Now().UTC()}

	journal := s.journal
	if journal != nil {
		id, err := journal.CreateRun(ctx, run)
		if err != nil {
			// The journal is an audit sink, not a dependency of the decision
			// path. Log and carry on without it this run.
			s.logger.Error(ctx, err, "Failed to open journal run record, continuing without journal")
			journal = nil
		} else {
			run.ID = id
		}
	}

	positions, err := s.broker.GetPositions(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to fetch positions")
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	report.PositionsSeen = len(positions)

	for _, pos := range positions {
		// Long-only management is a fixed assumption of this system, not a
		// per-symbol setting.
		if !pos.IsLong() {
			s.logger.Debug(ctx, "Skipping non-long position", map[string]interface{}{"symbol": pos.Symbol, "qty": pos.Qty.String()})
			continue
		}
		report.LongPositions++

		res := s.protectSymbol(ctx, pos, report)
		if res != nil {
			report.Results = append(report.Results, res)
			report.OrdersCreated += res.OrdersCreated
			s.journalEvents(ctx, journal, run.ID, res)
		}
	}

	run.FinishedAt = time.Now().UTC()
	run.PositionsSeen = report.PositionsSeen
	run.OrdersCreated = report.OrdersCreated
	if journal != nil {
		if err := journal.FinishRun(ctx, run); err != nil {
			s.logger.Error(ctx, err, "Failed to close journal run record")
		}
	}

	s.logger.Info(ctx, "Protection run finished", map[string]interface{}{
		"positions":     report.PositionsSeen,
		"longPositions": report.LongPositions,
		"ordersCreated": report.OrdersCreated,
		"failures":      report.Failures,
	})
	return report, nil
}

// protectSymbol evaluates one position, isolating its failures from the rest
// of the run.
func (s *Service) protectSymbol(ctx context.Context, pos *domain.Position, report *RunReport) *protection.Result {
	orders, err := s.broker.GetOpenOrders(ctx, pos.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to fetch open orders, skipping symbol", map[string]interface{}{"symbol": pos.Symbol})
		report.Failures++
		return nil
	}

	state := protection.Classify(orders)
	pol := s.resolver.Resolve(pos.Symbol)

	res, err := s.engine.Protect(ctx, pos, pol, state)
	if err != nil {
		report.Failures++
		s.logger.Error(ctx, err, "Symbol evaluation failed", map[string]interface{}{"symbol": pos.Symbol})
	}
	for _, line := range res.Decisions {
		s.logger.Info(ctx, line)
	}
	return res
}

// journalEvents appends the symbol's order operations to the audit journal.
func (s *Service) journalEvents(ctx context.Context, journal ports.RunJournal, runID int64, res *protection.Result) {
	if journal == nil {
		return
	}
	for _, ev := range res.Events {
		ev.RunID = runID
		if err := journal.RecordEvent(ctx, ev); err != nil {
			s.logger.Error(ctx, err, "Failed to journal order event", map[string]interface{}{"symbol": ev.Symbol, "action": string(ev.Action)})
		}
	}
}

package submitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/bundle"
)

// SimulationResult is the simulated outcome of one transaction
type SimulationResult struct {
	Index int
	Err   any
	Logs  []string
}

// Passed reports whether the simulation raised no error
func (r SimulationResult) Passed() bool {
	return r.Err == nil
}

// SimulationReport holds one result per transaction, in bundle order
type SimulationReport struct {
	Results []SimulationResult
}

// Passed reports whether every transaction simulated without error
func (r *SimulationReport) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return len(r.Results) > 0
}

// Simulator runs a bundle's transactions against current chain state without submitting
type Simulator struct {
	node   SimulationNode
	logger *zap.Logger
}

// NewSimulator creates a new simulator
func NewSimulator(logger *zap.Logger, node SimulationNode) *Simulator {
	return &Simulator{
		node:   node,
		logger: logger.With(zap.String("component", "Simulator")),
	}
}

// Simulate simulates every transaction of set. Transactions are simulated independently,
// so later entries that depend on earlier ones may report errors a landed bundle would not.
func (s *Simulator) Simulate(ctx context.Context, set bundle.SignedTransactionSet) (*SimulationReport, error) {
	txs, err := set.Decode()
	if err != nil {
		return nil, err
	}

	report := &SimulationReport{Results: make([]SimulationResult, 0, len(txs))}
	for i, tx := range txs {
		res, err := s.node.Simulate(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("simulation of transaction %d failed: %w", i, err)
		}
		report.Results = append(report.Results, SimulationResult{Index: i, Err: res.Err, Logs: res.Logs})

		s.logger.Debug("Simulated transaction",
			zap.Int("index", i),
			zap.Bool("passed", res.Err == nil),
			zap.Int("logLines", len(res.Logs)))
	}
	return report, nil
}

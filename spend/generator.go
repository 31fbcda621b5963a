package spend

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/dagsuite/dagwallet/netparams"
	"github.com/dagsuite/dagwallet/txmass"
	"github.com/dagsuite/dagwallet/txmodel"
	"github.com/dagsuite/dagwallet/utxotracker"
)

// GeneratorState describes where a generator run stands.
type GeneratorState uint8

const (
	// StateIdle means no transaction has been requested yet.
	StateIdle GeneratorState = iota

	// StateProducing means at least one transaction has been produced
	// and more may follow.
	StateProducing

	// StateExhausted means every requested output has been placed in
	// some produced transaction and no compounding stage is pending.
	StateExhausted

	// StateFailed means the run hit a terminal error. Terminal errors
	// are not retried; the caller must supply more coins or reduce the
	// request and construct a new generator.
	StateFailed
)

// String returns the state's name.
func (s GeneratorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProducing:
		return "producing"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown<%d>", uint8(s))
	}
}

// inputReserve is the number of standard inputs output packing leaves
// room for. A stage whose funding needs more inputs than the reserve is
// resolved through a compounding stage instead.
const inputReserve = 2

// GeneratorConfig bundles the static dependencies of a generator run.
type GeneratorConfig struct {
	// Params supplies the consensus constants.
	Params *netparams.Params

	// Snapshot is the pinned maturity snapshot the run draws coins
	// from when the request carries no explicit entries. The generator
	// never re-fetches it; a run is deterministic for a fixed snapshot
	// and request.
	Snapshot *utxotracker.Snapshot

	// Strategy orders coins for selection. Defaults to LargestFirst.
	Strategy SelectionStrategy
}

// Generator drives the iterative production of transactions until all
// requested outputs are satisfied. Transactions are produced lazily, one
// per Next call, so the caller can sign and submit each link of the chain
// before the next is materialized. A run may be abandoned between Next
// calls with no side effects; no external state is touched until the
// caller submits a returned transaction.
type Generator struct {
	cfg *GeneratorConfig
	req *Request

	calc    *txmass.Calculator
	builder *Builder

	state   GeneratorState
	failure error

	// available are the not yet consumed spendable coins.
	available []*txmodel.UTXO

	// priority are coins that must be consumed first: the request's
	// priority entries at the start of a run, then the carried change
	// output of the previously produced transaction.
	priority []*txmodel.UTXO

	// remaining are the payment outputs not yet placed in a produced
	// transaction.
	remaining []*txmodel.PaymentOutput

	// pinnedDAAScore is the DAA score of the snapshot the run was
	// constructed with.
	pinnedDAAScore uint64

	summary Summary
}

// NewGenerator validates the request and pins the coin set for one run.
func NewGenerator(cfg *GeneratorConfig, req *Request) (*Generator, error) {
	if cfg == nil || cfg.Params == nil {
		return nil, errors.New("generator config requires network " +
			"parameters")
	}

	reqCopy := *req
	reqCopy.normalize()
	if err := reqCopy.validate(); err != nil {
		return nil, err
	}

	available := reqCopy.Entries
	pinnedDAAScore := uint64(0)
	if len(available) == 0 && cfg.Snapshot != nil {
		available = cfg.Snapshot.MatureUTXOs()
	}
	if cfg.Snapshot != nil {
		pinnedDAAScore = cfg.Snapshot.DAAScore
	}

	calc := txmass.NewCalculator(cfg.Params)

	remaining := make([]*txmodel.PaymentOutput, len(reqCopy.Outputs))
	copy(remaining, reqCopy.Outputs)

	return &Generator{
		cfg:            cfg,
		req:            &reqCopy,
		calc:           calc,
		builder:        NewBuilder(cfg.Params, calc, cfg.Strategy),
		state:          StateIdle,
		available:      available,
		priority:       reqCopy.PriorityEntries,
		remaining:      remaining,
		pinnedDAAScore: pinnedDAAScore,
	}, nil
}

// State returns the current run state.
func (g *Generator) State() GeneratorState {
	return g.state
}

// Summary returns the running totals of this run. The returned value is a
// copy; it keeps growing only through further Next calls.
func (g *Generator) Summary() *Summary {
	summary := g.summary
	return &summary
}

// PinnedDAAScore returns the DAA score of the snapshot this run was
// constructed with.
func (g *Generator) PinnedDAAScore() uint64 {
	return g.pinnedDAAScore
}

// VerifySnapshot reports, advisorily, whether the pinned snapshot has
// been superseded by the given tracker. A stale snapshot never blocks the
// run.
func (g *Generator) VerifySnapshot(tracker *utxotracker.Tracker) error {
	if tracker.CurrentDAAScore() > g.pinnedDAAScore {
		return ErrStaleSnapshot
	}

	return nil
}

// Next produces the next transaction of the chain. It returns nil once
// every requested output has been placed and no compounding stage is
// pending. Terminal errors put the generator in StateFailed and are
// returned again on every subsequent call.
func (g *Generator) Next() (*PendingTransaction, error) {
	cand, err := g.nextCandidate()
	if err != nil || cand == nil {
		return nil, err
	}

	return newPendingTransaction(cand), nil
}

// Estimate runs the identical production algorithm on a fresh clone of
// this run's pinned state, without materializing signable transactions,
// and returns the resulting summary. Its totals are numerically identical
// to driving Next to completion.
func (g *Generator) Estimate() (*Summary, error) {
	clone, err := NewGenerator(g.cfg, g.req)
	if err != nil {
		return nil, err
	}

	for {
		cand, err := clone.nextCandidate()
		if err != nil {
			return nil, err
		}
		if cand == nil {
			break
		}
	}

	return clone.Summary(), nil
}

// fail parks the generator in its terminal failed state.
func (g *Generator) fail(err error) error {
	g.state = StateFailed
	g.failure = err

	log.Debugf("Generator run failed: %v", err)

	return err
}

// nextCandidate advances the build/split loop by one transaction.
func (g *Generator) nextCandidate() (*CandidateTransaction, error) {
	switch g.state {
	case StateFailed:
		return nil, g.failure
	case StateExhausted:
		return nil, nil
	}

	if len(g.remaining) == 0 {
		g.state = StateExhausted
		return nil, nil
	}

	g.state = StateProducing

	if g.req.isSweep() {
		return g.nextSweepCandidate()
	}

	outs := g.packOutputs()
	if len(outs) == 0 {
		return nil, g.fail(ErrMassExceedsLimit)
	}

	final := len(outs) == len(g.remaining)
	cand, err := g.builder.Build(
		g.available, g.priority, outs, g.req, final,
	)
	switch {
	case err == nil:
		g.commit(cand, len(outs))
		return cand, nil

	// The outputs fit, but the inputs needed to fund them do not:
	// consolidate coins first and retry on the next call's bigger coin.
	case errors.Is(err, ErrSplitRequired):
		return g.nextCompound()

	default:
		return nil, g.fail(err)
	}
}

// nextSweepCandidate handles spend-all requests, compounding until the
// full coin set fits a single transaction.
func (g *Generator) nextSweepCandidate() (*CandidateTransaction, error) {
	cand, err := g.builder.BuildSweep(g.available, g.priority, g.req)
	switch {
	case err == nil:
		g.commit(cand, len(g.remaining))
		return cand, nil

	case errors.Is(err, ErrSplitRequired):
		return g.nextCompound()

	default:
		return nil, g.fail(err)
	}
}

// nextCompound produces a compounding stage merging as many coins as the
// mass ceiling allows into one output for the follow-on transaction.
func (g *Generator) nextCompound() (*CandidateTransaction, error) {
	maxInputs := g.builder.MaxInputsUnderMass(nil, true, g.req, false)

	cand, err := g.builder.BuildCompound(
		g.available, g.priority, maxInputs, g.req,
	)
	if err != nil {
		return nil, g.fail(err)
	}

	g.commit(cand, 0)

	return cand, nil
}

// packOutputs returns the longest prefix of the remaining outputs that
// fits under the mass ceiling together with a change output and the input
// reserve. Storage mass is bounded with the most pessimistic funding: a
// single input carrying the entire spendable total, which maximizes the
// formula's output term relative to its input term. An empty result means
// even a single output cannot fit, which is a terminal condition.
func (g *Generator) packOutputs() []*txmodel.PaymentOutput {
	sigScriptSize := txmass.SignatureScriptEstimate(
		g.req.MinimumSignatures,
	)

	reserve := make([]*txmodel.UTXO, inputReserve)
	for i := range reserve {
		reserve[i] = &txmodel.UTXO{}
	}

	totalAvailable := txmodel.SumUTXOs(g.available) +
		txmodel.SumUTXOs(g.priority)

	// The change value itself is unknown until funding; guess half the
	// spendable total. The builder re-checks the exact shape.
	changeGuess := totalAvailable/2 + 1

	packed := 0
	for i := range g.remaining {
		final := i+1 == len(g.remaining)
		shape := g.builder.assembleShape(
			reserve, g.remaining[:i+1], fn.Some(uint64(1)),
			g.req, final,
		)

		mass := g.calc.TransactionComputeMass(shape, sigScriptSize)

		if totalAvailable > 0 {
			outputValues := make(
				[]uint64, 0, len(g.remaining[:i+1])+1,
			)
			for _, output := range g.remaining[:i+1] {
				outputValues = append(
					outputValues, output.Amount,
				)
			}
			outputValues = append(outputValues, changeGuess)

			storage := g.calc.TransactionStorageMass(
				[]uint64{totalAvailable}, outputValues,
			)
			mass = g.calc.TransactionTotalMass(mass, storage)
		}

		if mass > g.calc.MaximumStandardMass() {
			break
		}

		packed = i + 1
	}

	return g.remaining[:packed]
}

// commit applies a produced transaction to the run state: its coins are
// consumed, the placed outputs are retired, and its change output is
// carried as a priority coin of the next stage.
func (g *Generator) commit(cand *CandidateTransaction, placedOutputs int) {
	consumed := make(map[txmodel.Outpoint]struct{}, len(cand.Coins))
	for _, coin := range cand.Coins {
		consumed[coin.Outpoint] = struct{}{}
	}

	g.available = filterCoins(g.available, consumed)

	// A compounding batch may consume fewer coins than were supplied;
	// priority coins that did not fit this stage stay priority for the
	// next one.
	g.priority = filterCoins(g.priority, consumed)

	g.remaining = g.remaining[placedOutputs:]

	if len(g.remaining) > 0 {
		cand.ChangeAmount.WhenSome(func(value uint64) {
			index := cand.ChangeOutputIndex.UnwrapOr(0)
			g.priority = append(g.priority, &txmodel.UTXO{
				Outpoint: txmodel.Outpoint{
					TxID:  cand.Tx.TxID(),
					Index: uint32(index),
				},
				Amount:          value,
				ScriptPublicKey: g.req.ChangeScript,
				BlockDAAScore:   g.pinnedDAAScore,
				Address:         g.req.ChangeAddress,
			})
		})
	}

	g.summary.record(cand)

	if len(g.remaining) == 0 {
		g.summary.FinalTransactionID = fn.Some(cand.Tx.TxID())
	}

	log.Debugf("Produced %s transaction %v: %d inputs, %d outputs, "+
		"fee=%d, mass=%d", cand.Kind, cand.Tx.TxID(),
		len(cand.Tx.Inputs), len(cand.Tx.Outputs), cand.Fee,
		cand.TotalMass)
	log.Tracef("Candidate detail: %v",
		logClosure(func() string { return spew.Sdump(cand) }))
}

// filterCoins returns the coins not present in the consumed set, never
// mutating the given slice.
func filterCoins(coins []*txmodel.UTXO,
	consumed map[txmodel.Outpoint]struct{}) []*txmodel.UTXO {

	remaining := coins[:0:0]
	for _, coin := range coins {
		if _, ok := consumed[coin.Outpoint]; ok {
			continue
		}
		remaining = append(remaining, coin)
	}

	return remaining
}

package spend

import (
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/dagsuite/dagwallet/netparams"
	"github.com/dagsuite/dagwallet/txmass"
	"github.com/dagsuite/dagwallet/txmodel"
)

// maxFeeEstimationPasses bounds the selection/mass fixed point. Mass grows
// in discrete steps with input and output count, so the loop settles
// within three passes in practice.
const maxFeeEstimationPasses = 8

// TransactionKind distinguishes the role of a produced transaction within
// a chain.
type TransactionKind uint8

const (
	// KindFinal marks a transaction that places requested payment
	// outputs on the ledger.
	KindFinal TransactionKind = iota

	// KindBatch marks a compounding transaction that only merges coins
	// into a single output for a follow-on transaction to spend.
	KindBatch
)

// String returns the kind's name.
func (k TransactionKind) String() string {
	switch k {
	case KindFinal:
		return "final"
	case KindBatch:
		return "batch"
	default:
		return fmt.Sprintf("unknown<%d>", uint8(k))
	}
}

// CandidateTransaction is a fully costed, not yet signed transaction
// produced by the builder. While finalizing, the builder maintains the
// exact identity
//
//	sum(inputs) == sum(payment outputs) + change + fee
//
// with no implicit rounding.
type CandidateTransaction struct {
	// Tx is the assembled transaction.
	Tx *txmodel.Transaction

	// Coins are the consumed coins, index-aligned with Tx.Inputs.
	Coins []*txmodel.UTXO

	// Kind tells whether the transaction is a payment or a compounding
	// stage.
	Kind TransactionKind

	// AggregateInputAmount is the summed input value, in sompi.
	AggregateInputAmount uint64

	// PaymentAmount is the value placed in requested payment outputs,
	// in sompi. Zero for batch transactions.
	PaymentAmount uint64

	// ChangeAmount is the change output's value, if one was created.
	// For batch transactions it carries the merged output's value.
	ChangeAmount fn.Option[uint64]

	// ChangeOutputIndex is the index of the change (or merged) output
	// within Tx.Outputs, if one exists.
	ChangeOutputIndex fn.Option[int]

	// Fee is the exact fee paid, in sompi.
	Fee uint64

	// ComputeMass, StorageMass and TotalMass record the final mass
	// figures of the shape.
	ComputeMass uint64
	StorageMass uint64
	TotalMass   uint64
}

// Builder assembles a single transaction from a coin set and a payment
// list, iterating coin selection and mass computation until the fee used
// for selection agrees with the fee implied by the final mass.
type Builder struct {
	params   *netparams.Params
	calc     *txmass.Calculator
	strategy SelectionStrategy
}

// NewBuilder returns a Builder for the given network.
func NewBuilder(params *netparams.Params, calc *txmass.Calculator,
	strategy SelectionStrategy) *Builder {

	if strategy == nil {
		strategy = LargestFirst{}
	}

	return &Builder{
		params:   params,
		calc:     calc,
		strategy: strategy,
	}
}

// assembleShape builds the transaction for the given coins and outputs,
// with an optional change output locked under the request's change script
// appended last.
func (b *Builder) assembleShape(coins []*txmodel.UTXO,
	outputs []*txmodel.PaymentOutput, change fn.Option[uint64],
	req *Request, final bool) *txmodel.Transaction {

	tx := &txmodel.Transaction{}

	for _, coin := range coins {
		tx.Inputs = append(tx.Inputs, &txmodel.TransactionInput{
			PreviousOutpoint: coin.Outpoint,
			SigOpCount:       req.SigOpCount,
		})
	}

	for _, output := range outputs {
		tx.Outputs = append(tx.Outputs, &txmodel.TransactionOutput{
			Value:           output.Amount,
			ScriptPublicKey: output.ScriptPublicKey,
		})
	}

	change.WhenSome(func(value uint64) {
		tx.Outputs = append(tx.Outputs, &txmodel.TransactionOutput{
			Value:           value,
			ScriptPublicKey: req.ChangeScript,
		})
	})

	if final {
		tx.Payload = req.Payload
	}

	return tx
}

// shapeMasses returns the compute, storage and total mass of a shape.
func (b *Builder) shapeMasses(tx *txmodel.Transaction,
	coins []*txmodel.UTXO, sigScriptSize uint64) (uint64, uint64, uint64) {

	inputValues := make([]uint64, len(coins))
	for i, coin := range coins {
		inputValues[i] = coin.Amount
	}

	outputValues := make([]uint64, len(tx.Outputs))
	for i, output := range tx.Outputs {
		outputValues[i] = output.Value
	}

	computeMass := b.calc.TransactionComputeMass(tx, sigScriptSize)
	storageMass := b.calc.TransactionStorageMass(inputValues, outputValues)
	totalMass := b.calc.TransactionTotalMass(computeMass, storageMass)

	return computeMass, storageMass, totalMass
}

// Build assembles a single transaction paying the given outputs, funded
// from the priority coins followed by the available coins. The fee used
// for selection and the fee implied by the resulting mass are iterated to
// a fixed point. When final is set, the request's payload and priority
// fee are attached; intermediate transactions of a chain carry neither.
//
// Build fails with ErrSplitRequired when the funded shape cannot stay
// under the standard mass ceiling, with *ErrInsufficientFunds when the
// coins cannot cover the outputs plus the anticipated fee, and with
// ErrFeeEstimationNotConverging if the fixed point does not settle.
func (b *Builder) Build(available, priority []*txmodel.UTXO,
	outputs []*txmodel.PaymentOutput, req *Request,
	final bool) (*CandidateTransaction, error) {

	outValue := txmodel.SumPayments(outputs)
	sigScriptSize := txmass.SignatureScriptEstimate(req.MinimumSignatures)

	priorityFee := uint64(0)
	if final {
		priorityFee = req.PriorityFee
	}

	// massFeeEstimate tracks the smallest mass fee a viable shape can
	// pay; selection only needs to cover it since sub-dust leftover is
	// folded into the fee rather than demanding a change output.
	massFeeEstimate := uint64(0)
	for pass := 0; pass < maxFeeEstimationPasses; pass++ {
		target := outValue + priorityFee + massFeeEstimate
		selection, err := selectCoins(
			available, priority, target, b.strategy,
		)
		if err != nil {
			return nil, err
		}

		// Selection guarantees the overshoot is non-negative.
		overshoot := selection.total - outValue - priorityFee

		// Fee required for the shape without a change output.
		shapeNoChange := b.assembleShape(
			selection.coins, outputs, fn.None[uint64](), req,
			final,
		)
		_, _, massNoChange := b.shapeMasses(
			shapeNoChange, selection.coins, sigScriptSize,
		)
		if massNoChange > b.calc.MaximumStandardMass() {
			return nil, ErrSplitRequired
		}
		feeNoChange := b.calc.MinimumRequiredFee(
			massNoChange, req.FeeRate,
		)

		// The overshoot cannot even pay for a change-less shape:
		// re-run selection against the corrected target.
		if overshoot < feeNoChange {
			massFeeEstimate = feeNoChange

			log.Tracef("Fee estimate pass %d: mass=%d "+
				"requiredFee=%d", pass, massNoChange,
				feeNoChange)

			continue
		}

		// Fee required with a change output attached. The change
		// value is bounded above by overshoot-feeNoChange; using the
		// bound here only under-states storage mass, which the final
		// recomputation below corrects.
		shapeChange := b.assembleShape(
			selection.coins, outputs,
			fn.Some(overshoot-feeNoChange), req, final,
		)
		_, _, massChange := b.shapeMasses(
			shapeChange, selection.coins, sigScriptSize,
		)
		feeWithChange := b.calc.MinimumRequiredFee(
			massChange, req.FeeRate,
		)

		change := fn.None[uint64]()
		changeIndex := fn.None[int]()
		massFee := uint64(0)

		switch {
		// Enough left over to pay the with-change fee and a change
		// output above dust.
		case overshoot >= feeWithChange &&
			overshoot-feeWithChange >= b.params.DustThreshold &&
			massChange <= b.calc.MaximumStandardMass():

			change = fn.Some(overshoot - feeWithChange)
			changeIndex = fn.Some(len(outputs))
			massFee = feeWithChange

		// A substantial change output that only the mass ceiling
		// forbids means the shape must be split, not the change
		// silently burned as fee.
		case overshoot >= feeWithChange &&
			overshoot-feeWithChange >= b.params.DustThreshold:

			return nil, ErrSplitRequired

		// Otherwise the leftover is sub-dust (or only covers the
		// change-less fee): the change output is suppressed, not
		// zeroed and left on-chain, and the leftover goes to fees.
		default:
			massFee = overshoot
		}

		tx := b.assembleShape(selection.coins, outputs, change, req, final)

		computeMass, storageMass, totalMass := b.shapeMasses(
			tx, selection.coins, sigScriptSize,
		)
		if totalMass > b.calc.MaximumStandardMass() {
			return nil, ErrSplitRequired
		}

		// The fee settled on must cover the final shape's mass; if
		// the exact change value shifted storage mass upwards, run
		// another pass with the corrected estimate.
		requiredMassFee := b.calc.MinimumRequiredFee(
			totalMass, req.FeeRate,
		)
		if massFee < requiredMassFee {
			massFeeEstimate = requiredMassFee
			continue
		}

		fee := massFee + priorityFee

		// Exact value conservation: inputs == outputs + change + fee.
		if selection.total != outValue+change.UnwrapOr(0)+fee {
			return nil, fmt.Errorf("value conservation violated: "+
				"inputs=%d outputs=%d change=%d fee=%d",
				selection.total, outValue, change.UnwrapOr(0),
				fee)
		}

		return &CandidateTransaction{
			Tx:                   tx,
			Coins:                selection.coins,
			Kind:                 KindFinal,
			AggregateInputAmount: selection.total,
			PaymentAmount:        outValue,
			ChangeAmount:         change,
			ChangeOutputIndex:    changeIndex,
			Fee:                  fee,
			ComputeMass:          computeMass,
			StorageMass:          storageMass,
			TotalMass:            totalMass,
		}, nil
	}

	return nil, ErrFeeEstimationNotConverging
}

// BuildSweep assembles a transaction that consumes every given coin and
// sends all remaining value, after the fixed outputs and the fee, to the
// request's spend-all output. Sweeps create no change.
func (b *Builder) BuildSweep(available, priority []*txmodel.UTXO,
	req *Request) (*CandidateTransaction, error) {

	selection := selectAllCoins(available, priority, b.strategy)
	if len(selection.coins) == 0 {
		return nil, &ErrInsufficientFunds{Required: 1}
	}

	var (
		fixedOutputs []*txmodel.PaymentOutput
		sweepOutput  *txmodel.PaymentOutput
	)
	for _, output := range req.Outputs {
		if output.SpendAll {
			sweepOutput = output
			continue
		}
		fixedOutputs = append(fixedOutputs, output)
	}
	if sweepOutput == nil {
		return nil, fmt.Errorf("sweep build without spend-all output")
	}

	fixedValue := txmodel.SumPayments(fixedOutputs)
	sigScriptSize := txmass.SignatureScriptEstimate(req.MinimumSignatures)

	massFeeEstimate := uint64(0)
	for pass := 0; pass < maxFeeEstimationPasses; pass++ {
		totalFee := massFeeEstimate + req.PriorityFee

		required := fixedValue + totalFee + b.params.DustThreshold
		if selection.total < required {
			return nil, &ErrInsufficientFunds{
				Required:  required,
				Available: selection.total,
			}
		}

		sweepValue := selection.total - fixedValue - totalFee

		sweep := *sweepOutput
		sweep.Amount = sweepValue
		shaped := append(
			append([]*txmodel.PaymentOutput{}, fixedOutputs...),
			&sweep,
		)

		tx := b.assembleShape(
			selection.coins, shaped, fn.None[uint64](), req, true,
		)
		computeMass, storageMass, totalMass := b.shapeMasses(
			tx, selection.coins, sigScriptSize,
		)
		if totalMass > b.calc.MaximumStandardMass() {
			return nil, ErrSplitRequired
		}

		requiredMassFee := b.calc.MinimumRequiredFee(
			totalMass, req.FeeRate,
		)
		if requiredMassFee > massFeeEstimate {
			massFeeEstimate = requiredMassFee
			continue
		}

		return &CandidateTransaction{
			Tx:                   tx,
			Coins:                selection.coins,
			Kind:                 KindFinal,
			AggregateInputAmount: selection.total,
			PaymentAmount:        fixedValue + sweepValue,
			ChangeAmount:         fn.None[uint64](),
			ChangeOutputIndex:    fn.None[int](),
			Fee:                  totalFee,
			ComputeMass:          computeMass,
			StorageMass:          storageMass,
			TotalMass:            totalMass,
		}, nil
	}

	return nil, ErrFeeEstimationNotConverging
}

// MaxInputsUnderMass returns the largest number of standard inputs a
// transaction with the given outputs can carry and still respect the
// compute mass ceiling. Used to size compounding batches.
func (b *Builder) MaxInputsUnderMass(outputs []*txmodel.PaymentOutput,
	withChange bool, req *Request, final bool) int {

	sigScriptSize := txmass.SignatureScriptEstimate(req.MinimumSignatures)

	change := fn.None[uint64]()
	if withChange {
		// The change value does not influence compute mass.
		change = fn.Some(uint64(1))
	}

	base := b.calc.TransactionComputeMass(
		b.assembleShape(nil, outputs, change, req, final),
		sigScriptSize,
	)

	withOne := b.calc.TransactionComputeMass(
		b.assembleShape(
			[]*txmodel.UTXO{{}}, outputs, change, req, final,
		),
		sigScriptSize,
	)
	perInput := withOne - base

	limit := b.calc.MaximumStandardMass()
	if base >= limit {
		return 0
	}

	return int((limit - base) / perInput)
}

// BuildCompound batches up to maxInputs coins into a transaction with a
// single merged output locked under the change script. The merged output
// is the chain link a follow-on transaction spends.
func (b *Builder) BuildCompound(available, priority []*txmodel.UTXO,
	maxInputs int, req *Request) (*CandidateTransaction, error) {

	selection := &coinSelection{}

	seen := make(map[txmodel.Outpoint]struct{}, len(priority))
	for _, coin := range priority {
		if len(selection.coins) >= maxInputs {
			break
		}
		seen[coin.Outpoint] = struct{}{}
		selection.coins = append(selection.coins, coin)
		selection.total += coin.Amount
	}
	for _, coin := range b.strategy.ArrangeCoins(available) {
		if len(selection.coins) >= maxInputs {
			break
		}
		if _, ok := seen[coin.Outpoint]; ok {
			continue
		}
		selection.coins = append(selection.coins, coin)
		selection.total += coin.Amount
	}

	if len(selection.coins) < 2 {
		return nil, ErrMassExceedsLimit
	}

	sigScriptSize := txmass.SignatureScriptEstimate(req.MinimumSignatures)

	massFeeEstimate := uint64(0)
	for pass := 0; pass < maxFeeEstimationPasses; pass++ {
		if selection.total <= massFeeEstimate+b.params.DustThreshold {
			return nil, &ErrInsufficientFunds{
				Required: massFeeEstimate +
					b.params.DustThreshold,
				Available: selection.total,
			}
		}

		mergedValue := selection.total - massFeeEstimate

		tx := b.assembleShape(
			selection.coins, nil, fn.Some(mergedValue), req, false,
		)
		computeMass, storageMass, totalMass := b.shapeMasses(
			tx, selection.coins, sigScriptSize,
		)
		if totalMass > b.calc.MaximumStandardMass() {
			return nil, ErrMassExceedsLimit
		}

		requiredMassFee := b.calc.MinimumRequiredFee(
			totalMass, req.FeeRate,
		)
		if requiredMassFee > massFeeEstimate {
			massFeeEstimate = requiredMassFee
			continue
		}

		return &CandidateTransaction{
			Tx:                   tx,
			Coins:                selection.coins,
			Kind:                 KindBatch,
			AggregateInputAmount: selection.total,
			ChangeAmount:         fn.Some(mergedValue),
			ChangeOutputIndex:    fn.Some(0),
			Fee:                  massFeeEstimate,
			ComputeMass:          computeMass,
			StorageMass:          storageMass,
			TotalMass:            totalMass,
		}, nil
	}

	return nil, ErrFeeEstimationNotConverging
}

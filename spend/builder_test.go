package spend

import (
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/dagsuite/dagwallet/txmass"
	"github.com/dagsuite/dagwallet/txmodel"
)

// requireConservation asserts the exact value identity every candidate
// must satisfy: inputs == payments + change + fee.
func requireConservation(t *testing.T, cand *CandidateTransaction) {
	t.Helper()

	require.Equal(
		t, cand.AggregateInputAmount,
		cand.PaymentAmount+cand.ChangeAmount.UnwrapOr(0)+cand.Fee,
	)

	var outputTotal uint64
	for _, output := range cand.Tx.Outputs {
		outputTotal += output.Value
	}
	require.Equal(t, cand.AggregateInputAmount, outputTotal+cand.Fee)
}

// TestBuildCreatesChange asserts a funded transaction returns its
// overshoot, less the fee, as a change output locked under the change
// script.
func TestBuildCreatesChange(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)

	coins := []*txmodel.UTXO{
		testCoin(1, 500_000_000),
		testCoin(2, 300_000_000),
		testCoin(3, 200_000_000),
	}
	req := testRequest(testPayment(600_000_000))

	cand, err := b.Build(coins, nil, req.Outputs, req, true)
	require.NoError(t, err)

	// Largest-first funding needs exactly the two biggest coins.
	require.Len(t, cand.Tx.Inputs, 2)
	require.EqualValues(t, 800_000_000, cand.AggregateInputAmount)
	require.EqualValues(t, 600_000_000, cand.PaymentAmount)

	// The fee is exactly the mass-derived minimum and the rest of the
	// overshoot becomes change.
	require.Equal(
		t, calc.MinimumRequiredFee(cand.TotalMass, req.FeeRate),
		cand.Fee,
	)
	require.True(t, cand.ChangeAmount.IsSome())
	require.Equal(t, fn.Some(1), cand.ChangeOutputIndex)

	require.Len(t, cand.Tx.Outputs, 2)
	change := cand.Tx.Outputs[1]
	require.Equal(t, cand.ChangeAmount.UnwrapOr(0), change.Value)
	require.True(t, change.ScriptPublicKey.Equal(req.ChangeScript))

	requireConservation(t, cand)
}

// TestBuildFoldsDustChangeIntoFee asserts a leftover below the dust
// threshold is paid as fee instead of materializing a dust change output.
func TestBuildFoldsDustChangeIntoFee(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)
	req := testRequest(testPayment(1))

	// Compute mass depends only on the shape, never on amounts, so the
	// change-less fee is known up front: one input, one payment output.
	shape := &txmodel.Transaction{
		Inputs: []*txmodel.TransactionInput{{SigOpCount: 1}},
		Outputs: []*txmodel.TransactionOutput{{
			ScriptPublicKey: testPayment(1).ScriptPublicKey,
		}},
	}
	feeNoChange := calc.MinimumRequiredFee(
		calc.TransactionComputeMass(
			shape, txmass.SignatureScriptEstimate(1),
		),
		req.FeeRate,
	)

	// Leave exactly 100 sompi beyond the change-less fee: far below the
	// dust threshold.
	coin := testCoin(1, 100_000_000)
	pay := coin.Amount - feeNoChange - 100
	req = testRequest(testPayment(pay))

	cand, err := b.Build(
		[]*txmodel.UTXO{coin}, nil, req.Outputs, req, true,
	)
	require.NoError(t, err)

	require.Len(t, cand.Tx.Outputs, 1)
	require.True(t, cand.ChangeAmount.IsNone())
	require.True(t, cand.ChangeOutputIndex.IsNone())
	require.Equal(t, feeNoChange+100, cand.Fee)

	requireConservation(t, cand)
}

// TestBuildInsufficientFunds asserts the typed error reports the full
// reachable total when the coin set cannot fund the request.
func TestBuildInsufficientFunds(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)

	coins := []*txmodel.UTXO{
		testCoin(1, 60_000_000),
		testCoin(2, 40_000_000),
	}
	req := testRequest(testPayment(200_000_000))

	_, err := b.Build(coins, nil, req.Outputs, req, true)

	var fundsErr *ErrInsufficientFunds
	require.ErrorAs(t, err, &fundsErr)
	require.EqualValues(t, 100_000_000, fundsErr.Available)
}

// TestBuildSignalsSplit asserts that a request whose funding needs more
// inputs than the mass ceiling allows surfaces ErrSplitRequired rather
// than an over-mass transaction.
func TestBuildSignalsSplit(t *testing.T) {
	t.Parallel()

	// A ceiling of 4000 grams fits at most three standard inputs.
	params := testMassLimitParams(4000)
	calc := txmass.NewCalculator(params)
	b := NewBuilder(params, calc, nil)

	var coins []*txmodel.UTXO
	for i := byte(1); i <= 6; i++ {
		coins = append(coins, testCoin(i, 1_000_000_000))
	}
	req := testRequest(testPayment(5_000_000_000))

	_, err := b.Build(coins, nil, req.Outputs, req, true)
	require.ErrorIs(t, err, ErrSplitRequired)
}

// TestBuildPriorityFee asserts the priority fee is added on top of the
// mass fee of a final transaction and omitted from intermediate ones.
func TestBuildPriorityFee(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)

	coins := []*txmodel.UTXO{testCoin(1, 500_000_000)}

	req := testRequest(testPayment(100_000_000))
	req.PriorityFee = 25_000
	req.Payload = []byte("settlement batch 7")

	final, err := b.Build(coins, nil, req.Outputs, req, true)
	require.NoError(t, err)
	intermediate, err := b.Build(coins, nil, req.Outputs, req, false)
	require.NoError(t, err)

	massFee := calc.MinimumRequiredFee(final.TotalMass, req.FeeRate)
	require.Equal(t, massFee+req.PriorityFee, final.Fee)
	requireConservation(t, final)

	// Intermediate stages of a chain carry neither the priority fee nor
	// the payload.
	require.Equal(
		t,
		calc.MinimumRequiredFee(intermediate.TotalMass, req.FeeRate),
		intermediate.Fee,
	)
	require.Equal(t, []byte("settlement batch 7"), final.Tx.Payload)
	require.Nil(t, intermediate.Tx.Payload)
	requireConservation(t, intermediate)
}

// TestBuildSweep asserts a spend-all request consumes every coin and
// sends the full value, less the fee, with no change output.
func TestBuildSweep(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)

	coins := []*txmodel.UTXO{
		testCoin(1, 100_000_000),
		testCoin(2, 200_000_000),
		testCoin(3, 300_000_000),
	}
	req := testRequest(testSweepOutput())

	cand, err := b.BuildSweep(coins, nil, req)
	require.NoError(t, err)

	require.Len(t, cand.Tx.Inputs, 3)
	require.EqualValues(t, 600_000_000, cand.AggregateInputAmount)
	require.Equal(
		t, calc.MinimumRequiredFee(cand.TotalMass, req.FeeRate),
		cand.Fee,
	)

	require.Len(t, cand.Tx.Outputs, 1)
	require.Equal(t, 600_000_000-cand.Fee, cand.Tx.Outputs[0].Value)
	require.True(t, cand.ChangeAmount.IsNone())

	requireConservation(t, cand)
}

// TestBuildSweepWithFixedOutput asserts fixed outputs are paid in full
// before the sweep output receives the remainder.
func TestBuildSweepWithFixedOutput(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)

	coins := []*txmodel.UTXO{
		testCoin(1, 400_000_000),
		testCoin(2, 200_000_000),
	}
	req := testRequest(testPayment(100_000_000), testSweepOutput())

	cand, err := b.BuildSweep(coins, nil, req)
	require.NoError(t, err)

	require.Len(t, cand.Tx.Outputs, 2)
	require.EqualValues(t, 100_000_000, cand.Tx.Outputs[0].Value)
	require.Equal(
		t, 600_000_000-100_000_000-cand.Fee, cand.Tx.Outputs[1].Value,
	)
	require.EqualValues(t, 600_000_000-cand.Fee, cand.PaymentAmount)

	requireConservation(t, cand)
}

// TestBuildCompound asserts a compounding stage merges the batched coins
// into a single output under the change script, paying only the mass fee.
func TestBuildCompound(t *testing.T) {
	t.Parallel()

	calc := txmass.NewCalculator(testParams)
	b := NewBuilder(testParams, calc, nil)

	var coins []*txmodel.UTXO
	for i := byte(1); i <= 5; i++ {
		coins = append(coins, testCoin(i, 1_000_000_000))
	}
	req := testRequest(testPayment(1))

	cand, err := b.BuildCompound(coins, nil, 3, req)
	require.NoError(t, err)

	require.Equal(t, KindBatch, cand.Kind)
	require.Len(t, cand.Tx.Inputs, 3)
	require.EqualValues(t, 3_000_000_000, cand.AggregateInputAmount)
	require.Zero(t, cand.PaymentAmount)

	require.Len(t, cand.Tx.Outputs, 1)
	merged := cand.Tx.Outputs[0]
	require.Equal(t, 3_000_000_000-cand.Fee, merged.Value)
	require.True(t, merged.ScriptPublicKey.Equal(req.ChangeScript))
	require.Equal(t, fn.Some(merged.Value), cand.ChangeAmount)
	require.Equal(t, fn.Some(0), cand.ChangeOutputIndex)

	requireConservation(t, cand)

	// A batch of one coin merges nothing and is rejected.
	_, err = b.BuildCompound(coins, nil, 1, req)
	require.ErrorIs(t, err, ErrMassExceedsLimit)
}

// TestMaxInputsUnderMass asserts the reported input capacity is tight:
// that many inputs fit under the ceiling and one more does not.
func TestMaxInputsUnderMass(t *testing.T) {
	t.Parallel()

	params := testMassLimitParams(4000)
	calc := txmass.NewCalculator(params)
	b := NewBuilder(params, calc, nil)
	req := testRequest(testPayment(1))

	n := b.MaxInputsUnderMass(nil, true, req, false)
	require.Positive(t, n)

	sigScriptSize := txmass.SignatureScriptEstimate(req.MinimumSignatures)
	shapeAt := func(inputs int) uint64 {
		coins := make([]*txmodel.UTXO, inputs)
		for i := range coins {
			coins[i] = &txmodel.UTXO{}
		}
		tx := b.assembleShape(
			coins, nil, fn.Some(uint64(1)), req, false,
		)
		return calc.TransactionComputeMass(tx, sigScriptSize)
	}

	require.LessOrEqual(t, shapeAt(n), params.MaxStandardMass)
	require.Greater(t, shapeAt(n+1), params.MaxStandardMass)
}

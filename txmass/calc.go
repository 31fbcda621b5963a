package txmass

import (
	"math"

	"github.com/dagsuite/dagwallet/netparams"
	"github.com/dagsuite/dagwallet/txmodel"
)

const (
	// outpointSerializedSize is the serialized size of a transaction
	// outpoint: a 32 byte transaction id plus a 4 byte output index.
	outpointSerializedSize = 32 + 4

	// payloadHashSize is the serialized size of the payload hash.
	payloadHashSize = 32

	// StandardSignatureScriptSize is the serialized size of a signature
	// script carrying a single Schnorr signature: one length prefix
	// byte, 64 signature bytes and one sighash type byte.
	StandardSignatureScriptSize = 1 + 64 + 1
)

// Calculator computes transaction mass according to a network's consensus
// parameters. Mass, not byte size, is the metric the network uses to bound
// and fee transactions: the total mass of a transaction is the maximum of
// its compute mass and its storage mass, and all mass arithmetic rounds
// up, never down, since an under-estimate risks rejection.
type Calculator struct {
	params *netparams.Params
}

// NewCalculator returns a Calculator bound to the given network
// parameters.
func NewCalculator(params *netparams.Params) *Calculator {
	return &Calculator{params: params}
}

// SignatureScriptEstimate returns the anticipated signature script size of
// an input requiring minimumSignatures signatures. Multisig inputs carry
// one standard signature per required signer.
func SignatureScriptEstimate(minimumSignatures uint16) uint64 {
	if minimumSignatures < 1 {
		minimumSignatures = 1
	}

	return uint64(minimumSignatures) * StandardSignatureScriptSize
}

// TransactionEstimatedSerializedSize returns the estimated size, in bytes,
// of the transaction once fully signed. Inputs whose signature script is
// still empty are assumed to grow to signatureScriptSize bytes when
// signed. The estimate follows the consensus serialization and never
// under-counts.
func (c *Calculator) TransactionEstimatedSerializedSize(
	tx *txmodel.Transaction, signatureScriptSize uint64) uint64 {

	size := uint64(0)
	size += 2 // Version.

	size += 8 // Number of inputs.
	for _, input := range tx.Inputs {
		size += outpointSerializedSize
		size += 8 // Signature script length.

		if len(input.SignatureScript) > 0 {
			size += uint64(len(input.SignatureScript))
		} else {
			size += signatureScriptSize
		}

		size += 8 // Sequence.
		size += 1 // Sig op count.
	}

	size += 8 // Number of outputs.
	for _, output := range tx.Outputs {
		size += 8 // Value.
		size += 2 // Script public key version.
		size += 8 // Script public key length.
		size += uint64(len(output.ScriptPublicKey.Script))
	}

	size += 8 // Lock time.
	size += txmodel.SubnetworkIDSize
	size += 8 // Gas.
	size += payloadHashSize
	size += 8 // Payload length.
	size += uint64(len(tx.Payload))

	return size
}

// TransactionComputeMass returns the compute mass of the transaction: the
// serialized size charged per byte, the script public key bytes charged at
// their own, higher rate, and every signature operation charged a flat
// amount.
func (c *Calculator) TransactionComputeMass(tx *txmodel.Transaction,
	signatureScriptSize uint64) uint64 {

	size := c.TransactionEstimatedSerializedSize(tx, signatureScriptSize)

	totalScriptPubKeySize := uint64(0)
	for _, output := range tx.Outputs {
		totalScriptPubKeySize += 2
		totalScriptPubKeySize += uint64(len(output.ScriptPublicKey.Script))
	}

	totalSigOps := uint64(0)
	for _, input := range tx.Inputs {
		totalSigOps += uint64(input.SigOpCount)
	}

	return size*c.params.MassPerTxByte +
		totalScriptPubKeySize*c.params.MassPerScriptPubKeyByte +
		totalSigOps*c.params.MassPerSigOp
}

// TransactionStorageMass returns the storage mass of a transaction
// spending the given input values and creating the given output values.
//
// Storage mass penalizes fragmenting value into many small outputs. With
// C the network's storage mass parameter, the general formula is
//
//	max(0, C·sum(1/o for o in outputs) - C·|I|/mean(inputs))
//
// and the relaxed formula, applicable when the shape cannot be used to
// inflate the UTXO set (a single output, or no more outputs than inputs
// with at most two inputs), replaces the arithmetic input term with the
// harmonic one:
//
//	max(0, C·sum(1/o for o in outputs) - C·sum(1/i for i in inputs))
//
// All divisions are integer divisions; the subtraction saturates at zero.
// A zero-valued output makes the mass unrepresentable and yields
// math.MaxUint64.
func (c *Calculator) TransactionStorageMass(inputValues,
	outputValues []uint64) uint64 {

	if len(inputValues) == 0 || len(outputValues) == 0 {
		return 0
	}

	C := c.params.StorageMassParameter

	harmonicOuts := uint64(0)
	for _, value := range outputValues {
		if value == 0 {
			return math.MaxUint64
		}

		term := C / value
		if harmonicOuts > math.MaxUint64-term {
			return math.MaxUint64
		}
		harmonicOuts += term
	}

	outsLen := uint64(len(outputValues))
	insLen := uint64(len(inputValues))

	// Relaxed formula.
	if outsLen == 1 || (outsLen <= insLen && insLen <= 2) {
		harmonicIns := uint64(0)
		for _, value := range inputValues {
			if value == 0 {
				return math.MaxUint64
			}
			harmonicIns += C / value
		}

		if harmonicOuts < harmonicIns {
			return 0
		}

		return harmonicOuts - harmonicIns
	}

	// General formula, using the arithmetic mean of the inputs.
	sumIns := uint64(0)
	for _, value := range inputValues {
		if value == 0 {
			return math.MaxUint64
		}
		sumIns += value
	}

	meanIns := sumIns / insLen
	if meanIns == 0 {
		return math.MaxUint64
	}

	arithmeticIns := insLen * (C / meanIns)
	if harmonicOuts < arithmeticIns {
		return 0
	}

	return harmonicOuts - arithmeticIns
}

// TransactionTotalMass returns the total mass of a transaction shape: the
// maximum of its compute mass and its storage mass. The binding
// constraint is whichever is larger, they are never summed.
func (c *Calculator) TransactionTotalMass(computeMass,
	storageMass uint64) uint64 {

	if computeMass > storageMass {
		return computeMass
	}

	return storageMass
}

// MaximumStandardMass returns the network's standardness mass ceiling.
func (c *Calculator) MaximumStandardMass() uint64 {
	return c.params.MaxStandardMass
}

// MinimumRequiredFee returns the fee, in sompi, required for a transaction
// of the given mass at the given fee rate (sompi per gram). The result is
// rounded up and never falls below the network's relay fee floor.
func (c *Calculator) MinimumRequiredFee(mass uint64, feeRate float64) uint64 {
	if feeRate < 1 {
		feeRate = 1
	}

	fee := uint64(math.Ceil(float64(mass) * feeRate))
	if fee < c.params.MinimumRelayFee {
		fee = c.params.MinimumRelayFee
	}

	return fee
}

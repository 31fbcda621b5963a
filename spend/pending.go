package spend

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dagsuite/dagwallet/txmodel"
)

// SigHashAll is the default sighash flag the engine requests signatures
// for.
const SigHashAll uint8 = 0x01

// PendingTransaction wraps one built transaction with a signature slot per
// input. It is created unsigned by the generator, mutated in place by
// signing calls, becomes submittable once every slot is filled, and is
// consumed exactly once by submission.
type PendingTransaction struct {
	cand *CandidateTransaction

	// signed tracks which signature slots have been filled.
	signed []bool

	// submitted is set once the transaction has been handed to a
	// submitter; a pending transaction is never reusable afterwards.
	submitted bool
}

// newPendingTransaction wraps a candidate with empty signature slots.
func newPendingTransaction(cand *CandidateTransaction) *PendingTransaction {
	return &PendingTransaction{
		cand:   cand,
		signed: make([]bool, len(cand.Tx.Inputs)),
	}
}

// Transaction returns the underlying transaction. Callers must treat it
// as read-only except through SignInput.
func (p *PendingTransaction) Transaction() *txmodel.Transaction {
	return p.cand.Tx
}

// TxID returns the transaction id. Ids exclude signature scripts, so the
// id is stable across signing.
func (p *PendingTransaction) TxID() chainhash.Hash {
	return p.cand.Tx.TxID()
}

// Kind reports whether this is a payment or a compounding transaction.
func (p *PendingTransaction) Kind() TransactionKind {
	return p.cand.Kind
}

// Fee returns the exact fee the transaction pays, in sompi.
func (p *PendingTransaction) Fee() uint64 {
	return p.cand.Fee
}

// Mass returns the transaction's total mass.
func (p *PendingTransaction) Mass() uint64 {
	return p.cand.TotalMass
}

// AggregateInputAmount returns the summed input value, in sompi.
func (p *PendingTransaction) AggregateInputAmount() uint64 {
	return p.cand.AggregateInputAmount
}

// PaymentAmount returns the value placed in requested payment outputs, in
// sompi.
func (p *PendingTransaction) PaymentAmount() uint64 {
	return p.cand.PaymentAmount
}

// ChangeAmount returns the change output value, in sompi, or zero if no
// change output was created.
func (p *PendingTransaction) ChangeAmount() uint64 {
	return p.cand.ChangeAmount.UnwrapOr(0)
}

// SignDescriptors returns one descriptor per still-unsigned input, in
// input order, for an external signer.
func (p *PendingTransaction) SignDescriptors() []*SignDescriptor {
	descs := make([]*SignDescriptor, 0, len(p.cand.Tx.Inputs))
	for i, coin := range p.cand.Coins {
		if p.signed[i] {
			continue
		}

		descs = append(descs, &SignDescriptor{
			InputIndex:       i,
			PreviousOutpoint: coin.Outpoint,
			ScriptPublicKey:  coin.ScriptPublicKey,
			Amount:           coin.Amount,
			SigHashType:      SigHashAll,
		})
	}

	return descs
}

// SignInput fills the signature slot of one input. It fails with
// ErrInputIndexOutOfRange for an unknown index and with ErrAlreadySigned
// when the slot is already filled; idempotent overwrite is deliberately
// disallowed to catch caller bugs.
func (p *PendingTransaction) SignInput(index int,
	signatureScript []byte) error {

	if index < 0 || index >= len(p.cand.Tx.Inputs) {
		return fmt.Errorf("%w: %d (have %d inputs)",
			ErrInputIndexOutOfRange, index, len(p.cand.Tx.Inputs))
	}

	if p.signed[index] {
		return fmt.Errorf("%w: input %d", ErrAlreadySigned, index)
	}

	p.cand.Tx.Inputs[index].SignatureScript = signatureScript
	p.signed[index] = true

	return nil
}

// IsFullySigned reports whether every signature slot is filled.
func (p *PendingTransaction) IsFullySigned() bool {
	for _, ok := range p.signed {
		if !ok {
			return false
		}
	}

	return true
}

// Sign obtains a signature for every unsigned input from the given
// signer.
func (p *PendingTransaction) Sign(ctx context.Context, signer Signer) error {
	for _, desc := range p.SignDescriptors() {
		signatureScript, err := signer.SignInput(ctx, p.cand.Tx, desc)
		if err != nil {
			return fmt.Errorf("unable to sign input %d: %w",
				desc.InputIndex, err)
		}

		if err := p.SignInput(
			desc.InputIndex, signatureScript,
		); err != nil {
			return err
		}
	}

	return nil
}

// Finalize returns the signed transaction, failing with
// ErrIncompleteSignatures if any slot is still empty.
func (p *PendingTransaction) Finalize() (*txmodel.Transaction, error) {
	if !p.IsFullySigned() {
		return nil, ErrIncompleteSignatures
	}

	return p.cand.Tx, nil
}

// Submit finalizes the transaction and hands it to the submitter.
// Submission is single-use: any further Submit call fails with
// ErrAlreadySubmitted regardless of the first call's outcome being
// accepted by the network or not.
func (p *PendingTransaction) Submit(ctx context.Context,
	submitter Submitter) (chainhash.Hash, error) {

	if p.submitted {
		return chainhash.Hash{}, ErrAlreadySubmitted
	}

	tx, err := p.Finalize()
	if err != nil {
		return chainhash.Hash{}, err
	}

	p.submitted = true

	txid, err := submitter.SubmitTransaction(ctx, tx)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("unable to submit "+
			"transaction %v: %w", p.TxID(), err)
	}

	log.Debugf("Submitted %s transaction %v (fee=%d, mass=%d)",
		p.Kind(), txid, p.Fee(), p.Mass())

	return txid, nil
}

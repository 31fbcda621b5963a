package spend

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dagsuite/dagwallet/txmodel"
)

// CoinSource returns the full unspent set for a set of addresses. The
// engine never fetches coins itself; an external collaborator (typically
// an RPC client) implements this.
type CoinSource interface {
	// UTXOsByAddresses returns every unspent output owned by the given
	// addresses.
	UTXOsByAddresses(ctx context.Context,
		addrs []txmodel.Address) ([]*txmodel.UTXO, error)
}

// FetchEntries populates the request's coin set from an external coin
// source. Callers that pin a tracker snapshot instead leave Entries empty.
func (r *Request) FetchEntries(ctx context.Context, source CoinSource,
	addrs ...txmodel.Address) error {

	utxos, err := source.UTXOsByAddresses(ctx, addrs)
	if err != nil {
		return fmt.Errorf("unable to fetch coins: %w", err)
	}

	r.Entries = utxos

	return nil
}

// SignDescriptor describes a single unsigned input to an external signer:
// the outpoint being spent, the locking script it is encumbered by, the
// amount, and the sighash parameters. The engine never holds private key
// material.
type SignDescriptor struct {
	// InputIndex is the index of the input within the transaction.
	InputIndex int

	// PreviousOutpoint is the output the input spends.
	PreviousOutpoint txmodel.Outpoint

	// ScriptPublicKey is the locking script of the spent output.
	ScriptPublicKey txmodel.ScriptPublicKey

	// Amount is the value of the spent output, in sompi.
	Amount uint64

	// SigHashType is the sighash flag the signature must commit to.
	SigHashType uint8
}

// Signer produces a signature script for one input of a transaction.
type Signer interface {
	// SignInput returns the full signature script for the described
	// input of the given transaction.
	SignInput(ctx context.Context, tx *txmodel.Transaction,
		desc *SignDescriptor) ([]byte, error)
}

// Submitter accepts a finalized signed transaction and returns its id or
// a rejection reason. The engine does not retry submission.
type Submitter interface {
	// SubmitTransaction broadcasts the transaction to the network.
	SubmitTransaction(ctx context.Context,
		tx *txmodel.Transaction) (chainhash.Hash, error)
}

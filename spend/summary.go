package spend

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Summary accumulates the totals of one generator run. It grows
// monotonically while the run progresses and is only reset by creating a
// new generator.
type Summary struct {
	// Transactions is the number of transactions produced so far,
	// compounding stages included.
	Transactions int

	// Fees is the total fee paid across all produced transactions, in
	// sompi.
	Fees uint64

	// UTXOs is the total number of inputs consumed across all produced
	// transactions, chained intermediate outputs included.
	UTXOs int

	// SentAmount is the total value placed in requested payment
	// outputs, in sompi.
	SentAmount uint64

	// Mass is the aggregate total mass of all produced transactions.
	Mass uint64

	// FinalTransactionID is the id of the transaction carrying the last
	// payment outputs, once the run has produced it.
	FinalTransactionID fn.Option[chainhash.Hash]
}

// record folds one produced transaction into the summary.
func (s *Summary) record(cand *CandidateTransaction) {
	s.Transactions++
	s.Fees += cand.Fee
	s.UTXOs += len(cand.Coins)
	s.SentAmount += cand.PaymentAmount
	s.Mass += cand.TotalMass
}

// String returns a compact single-line rendering of the summary.
func (s *Summary) String() string {
	finalID := "none"
	s.FinalTransactionID.WhenSome(func(id chainhash.Hash) {
		finalID = id.String()
	})

	return fmt.Sprintf("txs=%d fees=%d utxos=%d sent=%d mass=%d "+
		"final=%s", s.Transactions, s.Fees, s.UTXOs, s.SentAmount,
		s.Mass, finalID)
}

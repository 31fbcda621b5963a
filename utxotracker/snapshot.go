package utxotracker

import (
	"sort"

	"github.com/dagsuite/dagwallet/txmodel"
)

// MaturitySet is a read-only, consistent view of one address' coin
// partition at a fixed DAA score. All coins are deep copies; mutating them
// cannot perturb the tracker.
type MaturitySet struct {
	// Address is the address the set belongs to.
	Address txmodel.Address

	// DAAScore is the DAA score at which the view was taken.
	DAAScore uint64

	// Mature holds the coins that are spendable at DAAScore.
	Mature map[txmodel.Outpoint]*txmodel.UTXO

	// Pending holds the coins still waiting out their maturity period.
	Pending map[txmodel.Outpoint]*txmodel.UTXO
}

// Snapshot is a consistent view across a set of addresses, suitable for
// pinning to a generator run.
type Snapshot struct {
	// DAAScore is the DAA score at which the view was taken.
	DAAScore uint64

	// Sets holds the per-address maturity sets.
	Sets map[txmodel.Address]*MaturitySet
}

// Balance summarizes one address' holdings, split by maturity.
type Balance struct {
	// Mature is the total spendable value, in sompi.
	Mature uint64

	// Pending is the total value still waiting out maturity, in sompi.
	Pending uint64

	// MatureUTXOCount is the number of spendable coins.
	MatureUTXOCount int

	// PendingUTXOCount is the number of pending coins.
	PendingUTXOCount int
}

// copySet clones a coin map.
func copySet(set map[txmodel.Outpoint]*txmodel.UTXO) map[txmodel.Outpoint]*txmodel.UTXO {
	out := make(map[txmodel.Outpoint]*txmodel.UTXO, len(set))
	for outpoint, utxo := range set {
		out[outpoint] = utxo.Clone()
	}

	return out
}

// SnapshotAddress returns a read-only view of one address' maturity
// partition.
func (t *Tracker) SnapshotAddress(addr txmodel.Address) (*MaturitySet, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	entry, ok := t.addresses[addr]
	if !ok {
		return nil, ErrAddressNotTracked
	}

	return &MaturitySet{
		Address:  addr,
		DAAScore: t.currentDAAScore,
		Mature:   copySet(entry.mature),
		Pending:  copySet(entry.pending),
	}, nil
}

// SnapshotAll returns a consistent view across every tracked address.
func (t *Tracker) SnapshotAll() *Snapshot {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	snapshot := &Snapshot{
		DAAScore: t.currentDAAScore,
		Sets:     make(map[txmodel.Address]*MaturitySet, len(t.addresses)),
	}
	for addr, entry := range t.addresses {
		snapshot.Sets[addr] = &MaturitySet{
			Address:  addr,
			DAAScore: t.currentDAAScore,
			Mature:   copySet(entry.mature),
			Pending:  copySet(entry.pending),
		}
	}

	return snapshot
}

// Balance returns the maturity-split balance of one address.
func (t *Tracker) Balance(addr txmodel.Address) (*Balance, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	entry, ok := t.addresses[addr]
	if !ok {
		return nil, ErrAddressNotTracked
	}

	balance := &Balance{
		MatureUTXOCount:  len(entry.mature),
		PendingUTXOCount: len(entry.pending),
	}
	for _, utxo := range entry.mature {
		balance.Mature += utxo.Amount
	}
	for _, utxo := range entry.pending {
		balance.Pending += utxo.Amount
	}

	return balance, nil
}

// MatureUTXOs returns every mature coin in the snapshot, ordered by
// descending amount with ties broken by ascending DAA score. This is the
// order the coin selector consumes.
func (s *Snapshot) MatureUTXOs() []*txmodel.UTXO {
	var utxos []*txmodel.UTXO
	for _, set := range s.Sets {
		for _, utxo := range set.Mature {
			utxos = append(utxos, utxo)
		}
	}

	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].Amount != utxos[j].Amount {
			return utxos[i].Amount > utxos[j].Amount
		}
		if utxos[i].BlockDAAScore != utxos[j].BlockDAAScore {
			return utxos[i].BlockDAAScore < utxos[j].BlockDAAScore
		}

		// Full outpoint order so the result is deterministic for
		// identical amounts and scores.
		return utxos[i].Outpoint.String() < utxos[j].Outpoint.String()
	})

	return utxos
}

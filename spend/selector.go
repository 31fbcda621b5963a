package spend

import (
	"sort"

	"github.com/dagsuite/dagwallet/txmodel"
)

// SelectionStrategy determines the order in which spendable coins are
// consumed by selection. Strategies only order coins; they never drop or
// invent any.
type SelectionStrategy interface {
	// ArrangeCoins returns the coins in consumption order.
	ArrangeCoins(coins []*txmodel.UTXO) []*txmodel.UTXO
}

// LargestFirst orders coins by descending amount, minimizing the input
// count and therefore the mass of the produced transaction. Ties are
// broken by ascending DAA score so older coins are consumed first. This
// greedy ordering is the documented selection policy; it makes no attempt
// at a minimal-input subset-sum optimum.
type LargestFirst struct{}

// ArrangeCoins returns the coins ordered largest amount first.
func (LargestFirst) ArrangeCoins(coins []*txmodel.UTXO) []*txmodel.UTXO {
	arranged := make([]*txmodel.UTXO, len(coins))
	copy(arranged, coins)

	sort.SliceStable(arranged, func(i, j int) bool {
		if arranged[i].Amount != arranged[j].Amount {
			return arranged[i].Amount > arranged[j].Amount
		}

		return arranged[i].BlockDAAScore < arranged[j].BlockDAAScore
	})

	return arranged
}

// coinSelection is the result of one selection round.
type coinSelection struct {
	// coins are the selected coins, priority coins first.
	coins []*txmodel.UTXO

	// total is the summed value of the selected coins, in sompi.
	total uint64
}

// selectCoins chooses coins to cover the target amount. Priority coins are
// always included first, in the caller-given order, even if they alone
// overshoot the target. The remaining coins are consumed in strategy
// order and selection stops as soon as the target is reached. When every
// coin is exhausted before the target, an ErrInsufficientFunds carrying
// the reachable total is returned.
func selectCoins(available, priority []*txmodel.UTXO, target uint64,
	strategy SelectionStrategy) (*coinSelection, error) {

	selection := &coinSelection{}

	seen := make(map[txmodel.Outpoint]struct{}, len(priority))
	for _, coin := range priority {
		seen[coin.Outpoint] = struct{}{}
		selection.coins = append(selection.coins, coin)
		selection.total += coin.Amount
	}

	if selection.total >= target {
		return selection, nil
	}

	for _, coin := range strategy.ArrangeCoins(available) {
		// A coin passed as both priority and available is counted
		// once.
		if _, ok := seen[coin.Outpoint]; ok {
			continue
		}

		selection.coins = append(selection.coins, coin)
		selection.total += coin.Amount

		if selection.total >= target {
			return selection, nil
		}
	}

	return nil, &ErrInsufficientFunds{
		Required:  target,
		Available: selection.total,
	}
}

// selectAllCoins returns every available coin, priority coins first. Used
// for sweep requests, which by definition consume the full spendable set.
func selectAllCoins(available, priority []*txmodel.UTXO,
	strategy SelectionStrategy) *coinSelection {

	selection := &coinSelection{}

	seen := make(map[txmodel.Outpoint]struct{}, len(priority))
	for _, coin := range priority {
		seen[coin.Outpoint] = struct{}{}
		selection.coins = append(selection.coins, coin)
		selection.total += coin.Amount
	}

	for _, coin := range strategy.ArrangeCoins(available) {
		if _, ok := seen[coin.Outpoint]; ok {
			continue
		}

		selection.coins = append(selection.coins, coin)
		selection.total += coin.Amount
	}

	return selection
}

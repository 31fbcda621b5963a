package spend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagsuite/dagwallet/txmodel"
)

// TestLargestFirstArrange asserts the default strategy orders coins by
// descending amount with older coins winning ties, without mutating the
// input slice.
func TestLargestFirstArrange(t *testing.T) {
	t.Parallel()

	oldBig := testCoin(1, 5_000_000)
	oldBig.BlockDAAScore = 10
	youngBig := testCoin(2, 5_000_000)
	youngBig.BlockDAAScore = 20
	mid := testCoin(3, 2_000_000)
	small := testCoin(4, 1_000_000)

	coins := []*txmodel.UTXO{small, youngBig, mid, oldBig}
	arranged := LargestFirst{}.ArrangeCoins(coins)

	require.Equal(
		t, []*txmodel.UTXO{oldBig, youngBig, mid, small}, arranged,
	)

	// The caller's slice keeps its order.
	require.Equal(t, []*txmodel.UTXO{small, youngBig, mid, oldBig}, coins)
}

// TestSelectCoinsStopsAtTarget asserts selection consumes coins in
// strategy order and stops as soon as the target is covered.
func TestSelectCoinsStopsAtTarget(t *testing.T) {
	t.Parallel()

	coins := []*txmodel.UTXO{
		testCoin(1, 1_000_000),
		testCoin(2, 5_000_000),
		testCoin(3, 3_000_000),
	}

	selection, err := selectCoins(coins, nil, 6_000_000, LargestFirst{})
	require.NoError(t, err)

	require.Len(t, selection.coins, 2)
	require.EqualValues(t, 8_000_000, selection.total)
	require.EqualValues(t, 5_000_000, selection.coins[0].Amount)
	require.EqualValues(t, 3_000_000, selection.coins[1].Amount)
}

// TestSelectCoinsPriorityFirst asserts priority coins are always consumed
// before any other coin, in the caller-given order, even when a larger
// coin is available.
func TestSelectCoinsPriorityFirst(t *testing.T) {
	t.Parallel()

	big := testCoin(1, 1_000_000_000)
	prioA := testCoin(2, 400_000)
	prioB := testCoin(3, 300_000)

	selection, err := selectCoins(
		[]*txmodel.UTXO{big}, []*txmodel.UTXO{prioA, prioB},
		500_000, LargestFirst{},
	)
	require.NoError(t, err)

	// Priority coins cover the target on their own; the big coin stays
	// untouched.
	require.Equal(t, []*txmodel.UTXO{prioA, prioB}, selection.coins)
	require.EqualValues(t, 700_000, selection.total)

	// A larger target pulls in the available coin after the priority
	// coins.
	selection, err = selectCoins(
		[]*txmodel.UTXO{big}, []*txmodel.UTXO{prioA, prioB},
		800_000, LargestFirst{},
	)
	require.NoError(t, err)
	require.Equal(t, []*txmodel.UTXO{prioA, prioB, big}, selection.coins)
}

// TestSelectCoinsDeduplicates asserts a coin passed as both priority and
// available is only counted once.
func TestSelectCoinsDeduplicates(t *testing.T) {
	t.Parallel()

	shared := testCoin(1, 1_000_000)
	other := testCoin(2, 1_000_000)

	selection, err := selectCoins(
		[]*txmodel.UTXO{shared, other}, []*txmodel.UTXO{shared},
		1_500_000, LargestFirst{},
	)
	require.NoError(t, err)

	require.Equal(t, []*txmodel.UTXO{shared, other}, selection.coins)
	require.EqualValues(t, 2_000_000, selection.total)
}

// TestSelectCoinsInsufficientFunds asserts the typed error carries both
// the unreachable target and the reachable total.
func TestSelectCoinsInsufficientFunds(t *testing.T) {
	t.Parallel()

	coins := []*txmodel.UTXO{
		testCoin(1, 2_000_000),
		testCoin(2, 1_000_000),
	}

	_, err := selectCoins(coins, nil, 5_000_000, LargestFirst{})

	var fundsErr *ErrInsufficientFunds
	require.ErrorAs(t, err, &fundsErr)
	require.EqualValues(t, 5_000_000, fundsErr.Required)
	require.EqualValues(t, 3_000_000, fundsErr.Available)
}

// TestSelectAllCoins asserts sweep selection returns the full coin set,
// priority coins first and duplicates removed.
func TestSelectAllCoins(t *testing.T) {
	t.Parallel()

	prio := testCoin(1, 100)
	a := testCoin(2, 200)
	b := testCoin(3, 300)

	selection := selectAllCoins(
		[]*txmodel.UTXO{a, prio, b}, []*txmodel.UTXO{prio},
		LargestFirst{},
	)

	require.Equal(t, []*txmodel.UTXO{prio, b, a}, selection.coins)
	require.EqualValues(t, 600, selection.total)
}

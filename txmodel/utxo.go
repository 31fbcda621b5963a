package txmodel

// Address is an opaque address key. Address encoding and script derivation
// live outside the engine; the tracker only uses addresses to partition
// ownership of coins.
type Address string

// UTXO houses the details of a single unspent transaction output: whether
// it was produced by a coinbase transaction, the DAA score of the block
// that accepted it, its locking script and how much it pays. A UTXO is
// immutable once observed.
type UTXO struct {
	// Outpoint identifies this output.
	Outpoint Outpoint

	// Amount is the value locked by this output, in sompi.
	Amount uint64

	// ScriptPublicKey is the locking script of the output.
	ScriptPublicKey ScriptPublicKey

	// BlockDAAScore is the DAA score of the block that accepted the
	// transaction creating this output. Maturity is measured from it.
	BlockDAAScore uint64

	// IsCoinbase reports whether the creating transaction was a
	// coinbase. Coinbase outputs mature more slowly.
	IsCoinbase bool

	// Address is the tracked address that owns this output.
	Address Address
}

// Clone returns a deep copy of the UTXO.
func (u *UTXO) Clone() *UTXO {
	if u == nil {
		return nil
	}

	clone := *u
	clone.ScriptPublicKey = u.ScriptPublicKey.Clone()

	return &clone
}

// Equal returns whether u equals other.
func (u *UTXO) Equal(other *UTXO) bool {
	if u == nil || other == nil {
		return u == other
	}

	if u.Outpoint != other.Outpoint {
		return false
	}

	if u.Amount != other.Amount {
		return false
	}

	if !u.ScriptPublicKey.Equal(other.ScriptPublicKey) {
		return false
	}

	if u.BlockDAAScore != other.BlockDAAScore {
		return false
	}

	if u.IsCoinbase != other.IsCoinbase {
		return false
	}

	return u.Address == other.Address
}

// IsMature reports whether the UTXO may be spent at the given DAA score,
// given the maturity period applicable to it.
func (u *UTXO) IsMature(currentDAAScore, maturityPeriod uint64) bool {
	if currentDAAScore < u.BlockDAAScore {
		return false
	}

	return currentDAAScore-u.BlockDAAScore >= maturityPeriod
}

// SumUTXOs returns the total amount carried by the given UTXOs.
func SumUTXOs(utxos []*UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Amount
	}

	return total
}

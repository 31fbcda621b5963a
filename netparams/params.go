package netparams

import "fmt"

// Net identifies a dagwallet network.
type Net uint8

const (
	// MainNet is the production network.
	MainNet Net = iota

	// TestNet is the public test network.
	TestNet

	// SimNet is the private simulation network used by integration
	// tests.
	SimNet

	// DevNet is the development network.
	DevNet
)

// String returns the canonical lower-case name of the network.
func (n Net) String() string {
	switch n {
	case MainNet:
		return "mainnet"
	case TestNet:
		return "testnet"
	case SimNet:
		return "simnet"
	case DevNet:
		return "devnet"
	default:
		return fmt.Sprintf("unknown<%d>", uint8(n))
	}
}

// Params houses the consensus constants the transaction generation engine
// depends on: the per-byte and per-sigop mass factors, the storage mass
// parameter, the standardness mass ceiling, and the maturity periods that
// gate when a UTXO becomes spendable. Params values are static per network
// and are never mutated at runtime.
type Params struct {
	// Net is the network these parameters belong to.
	Net Net

	// MassPerTxByte is the number of grams of mass that every serialized
	// transaction byte contributes.
	MassPerTxByte uint64

	// MassPerScriptPubKeyByte is the number of grams of mass that every
	// script public key byte contributes, on top of the per-byte charge.
	MassPerScriptPubKeyByte uint64

	// MassPerSigOp is the number of grams of mass that every signature
	// operation contributes.
	MassPerSigOp uint64

	// MaxStandardMass is the maximum total mass a transaction may have
	// and still be accepted by the network as standard. The generator
	// splits a request into multiple chained transactions rather than
	// exceed this ceiling.
	MaxStandardMass uint64

	// StorageMassParameter is the constant C of the storage mass
	// formula. Storage mass charges outputs in proportion to C divided
	// by their value, penalizing fragmentation of value into small
	// outputs.
	StorageMassParameter uint64

	// CoinbaseMaturity is the number of DAA score units that must elapse
	// before a coinbase output may be spent.
	CoinbaseMaturity uint64

	// UserTransactionMaturity is the number of DAA score units that must
	// elapse before a regular transaction output may be spent.
	UserTransactionMaturity uint64

	// DustThreshold is the smallest change output value, in sompi, the
	// builder will create. Leftover change below this value is folded
	// into the transaction fee instead.
	DustThreshold uint64

	// MinimumRelayFee is the fee floor, in sompi, for any
	// transaction produced by the engine.
	MinimumRelayFee uint64
}

// MaturityPeriod returns the maturity period applicable to an output,
// which depends on whether it was created by a coinbase transaction.
func (p *Params) MaturityPeriod(isCoinbase bool) uint64 {
	if isCoinbase {
		return p.CoinbaseMaturity
	}

	return p.UserTransactionMaturity
}

// MainNetParams contains the consensus parameters of the production
// network.
var MainNetParams = Params{
	Net:                     MainNet,
	MassPerTxByte:           1,
	MassPerScriptPubKeyByte: 10,
	MassPerSigOp:            1000,
	MaxStandardMass:         100_000,
	StorageMassParameter:    1_000_000_000_000,
	CoinbaseMaturity:        100,
	UserTransactionMaturity: 10,
	DustThreshold:           600,
	MinimumRelayFee:         1000,
}

// TestNetParams contains the consensus parameters of the public test
// network. They currently track mainnet.
var TestNetParams = Params{
	Net:                     TestNet,
	MassPerTxByte:           1,
	MassPerScriptPubKeyByte: 10,
	MassPerSigOp:            1000,
	MaxStandardMass:         100_000,
	StorageMassParameter:    1_000_000_000_000,
	CoinbaseMaturity:        100,
	UserTransactionMaturity: 10,
	DustThreshold:           600,
	MinimumRelayFee:         1000,
}

// SimNetParams contains the consensus parameters of the simulation
// network. The maturity periods are shortened so integration tests don't
// have to grind through the full mainnet maturity window.
var SimNetParams = Params{
	Net:                     SimNet,
	MassPerTxByte:           1,
	MassPerScriptPubKeyByte: 10,
	MassPerSigOp:            1000,
	MaxStandardMass:         100_000,
	StorageMassParameter:    1_000_000_000_000,
	CoinbaseMaturity:        10,
	UserTransactionMaturity: 2,
	DustThreshold:           600,
	MinimumRelayFee:         1000,
}

// DevNetParams contains the consensus parameters of the development
// network.
var DevNetParams = Params{
	Net:                     DevNet,
	MassPerTxByte:           1,
	MassPerScriptPubKeyByte: 10,
	MassPerSigOp:            1000,
	MaxStandardMass:         100_000,
	StorageMassParameter:    1_000_000_000_000,
	CoinbaseMaturity:        100,
	UserTransactionMaturity: 10,
	DustThreshold:           600,
	MinimumRelayFee:         1000,
}

// ForNet returns the parameters registered for the given network.
func ForNet(net Net) (*Params, error) {
	switch net {
	case MainNet:
		return &MainNetParams, nil
	case TestNet:
		return &TestNetParams, nil
	case SimNet:
		return &SimNetParams, nil
	case DevNet:
		return &DevNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network: %v", net)
	}
}

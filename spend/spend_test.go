package spend

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dagsuite/dagwallet/netparams"
	"github.com/dagsuite/dagwallet/txmodel"
)

// testParams mirrors the production constants except for the relay fee
// floor, which is lowered to one sompi so fees in assertions derive from
// mass alone.
var testParams = &netparams.Params{
	Net:                     netparams.SimNet,
	MassPerTxByte:           1,
	MassPerScriptPubKeyByte: 10,
	MassPerSigOp:            1000,
	MaxStandardMass:         100_000,
	StorageMassParameter:    1_000_000_000_000,
	CoinbaseMaturity:        10,
	UserTransactionMaturity: 5,
	DustThreshold:           600,
	MinimumRelayFee:         1,
}

// testMassLimitParams returns a copy of testParams with the standard mass
// ceiling lowered, forcing splits with small coin sets.
func testMassLimitParams(limit uint64) *netparams.Params {
	params := *testParams
	params.MaxStandardMass = limit
	return &params
}

func testOutpoint(seed byte) txmodel.Outpoint {
	var txid chainhash.Hash
	txid[0] = seed
	txid[31] = seed

	return txmodel.Outpoint{TxID: txid, Index: uint32(seed)}
}

func testScript(seed byte) txmodel.ScriptPublicKey {
	return txmodel.ScriptPublicKey{
		Version: 0,
		Script:  bytes.Repeat([]byte{seed}, 34),
	}
}

func testCoin(seed byte, amount uint64) *txmodel.UTXO {
	return &txmodel.UTXO{
		Outpoint:        testOutpoint(seed),
		Amount:          amount,
		ScriptPublicKey: testScript(seed),
		BlockDAAScore:   uint64(seed),
		Address:         "utxo-owner",
	}
}

func testPayment(amount uint64) *txmodel.PaymentOutput {
	return &txmodel.PaymentOutput{
		Address:         "payment-dest",
		ScriptPublicKey: testScript(0xee),
		Amount:          amount,
	}
}

func testSweepOutput() *txmodel.PaymentOutput {
	return &txmodel.PaymentOutput{
		Address:         "sweep-dest",
		ScriptPublicKey: testScript(0xdd),
		SpendAll:        true,
	}
}

// testRequest returns a normalized request paying the given outputs, with
// a change destination already resolved.
func testRequest(outputs ...*txmodel.PaymentOutput) *Request {
	req := &Request{
		Outputs:       outputs,
		ChangeAddress: "change-dest",
		ChangeScript:  testScript(0xcc),
	}
	req.normalize()

	return req
}

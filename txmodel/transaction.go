package txmodel

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SubnetworkIDSize is the size, in bytes, of a subnetwork identifier.
const SubnetworkIDSize = 20

// SubnetworkID identifies the subnetwork a transaction belongs to. The
// zero value is the native subnetwork.
type SubnetworkID [SubnetworkIDSize]byte

// Outpoint references an output of a previous transaction by transaction
// id and output index.
type Outpoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// String returns the outpoint in the canonical "txid:index" form.
func (o Outpoint) String() string {
	return fmt.Sprintf("%v:%d", o.TxID, o.Index)
}

// ScriptPublicKey is a versioned locking script. The script bytes are
// opaque to the engine; encoding and decoding them belongs to the address
// layer.
type ScriptPublicKey struct {
	Version uint16
	Script  []byte
}

// Clone returns a deep copy of the script public key.
func (s ScriptPublicKey) Clone() ScriptPublicKey {
	script := make([]byte, len(s.Script))
	copy(script, s.Script)

	return ScriptPublicKey{
		Version: s.Version,
		Script:  script,
	}
}

// Equal returns whether s equals other.
func (s ScriptPublicKey) Equal(other ScriptPublicKey) bool {
	return s.Version == other.Version && bytes.Equal(s.Script, other.Script)
}

// TransactionInput is a single input of a transaction, spending a previous
// output.
type TransactionInput struct {
	// PreviousOutpoint is the output being spent.
	PreviousOutpoint Outpoint

	// SignatureScript unlocks the previous output. It is empty until the
	// input has been signed.
	SignatureScript []byte

	// Sequence is the input sequence number.
	Sequence uint64

	// SigOpCount is the number of signature operations the fully signed
	// input will execute. It participates in mass accounting.
	SigOpCount byte
}

// TransactionOutput is a single output of a transaction, locking Value
// sompi under ScriptPublicKey.
type TransactionOutput struct {
	Value           uint64
	ScriptPublicKey ScriptPublicKey
}

// Transaction is the engine's view of a ledger transaction.
type Transaction struct {
	Version      uint16
	Inputs       []*TransactionInput
	Outputs      []*TransactionOutput
	LockTime     uint64
	SubnetworkID SubnetworkID
	Gas          uint64
	Payload      []byte
}

// TxID returns the transaction id. Signature scripts are excluded from the
// hash, so the id is stable across signing and can be computed for a
// not-yet-signed transaction. This is what allows a chained transaction to
// reference its predecessor's change output before either has been signed.
func (tx *Transaction) TxID() chainhash.Hash {
	var buf bytes.Buffer
	tx.encode(&buf, false)

	return chainhash.DoubleHashH(buf.Bytes())
}

// encode writes a deterministic binary encoding of the transaction to w.
// When includeSignatures is false, signature scripts are encoded as empty,
// matching the id hashing rule.
func (tx *Transaction) encode(w *bytes.Buffer, includeSignatures bool) {
	var scratch [8]byte

	putUint16 := func(v uint16) {
		binary.LittleEndian.PutUint16(scratch[:2], v)
		w.Write(scratch[:2])
	}
	putUint32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:4], v)
		w.Write(scratch[:4])
	}
	putUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		w.Write(scratch[:])
	}

	putUint16(tx.Version)

	putUint64(uint64(len(tx.Inputs)))
	for _, input := range tx.Inputs {
		w.Write(input.PreviousOutpoint.TxID[:])
		putUint32(input.PreviousOutpoint.Index)

		if includeSignatures {
			putUint64(uint64(len(input.SignatureScript)))
			w.Write(input.SignatureScript)
		} else {
			putUint64(0)
		}

		putUint64(input.Sequence)
		w.WriteByte(input.SigOpCount)
	}

	putUint64(uint64(len(tx.Outputs)))
	for _, output := range tx.Outputs {
		putUint64(output.Value)
		putUint16(output.ScriptPublicKey.Version)
		putUint64(uint64(len(output.ScriptPublicKey.Script)))
		w.Write(output.ScriptPublicKey.Script)
	}

	putUint64(tx.LockTime)
	w.Write(tx.SubnetworkID[:])
	putUint64(tx.Gas)
	putUint64(uint64(len(tx.Payload)))
	w.Write(tx.Payload)
}

// TotalInputs returns the number of inputs.
func (tx *Transaction) TotalInputs() int {
	return len(tx.Inputs)
}

// TotalOutputs returns the number of outputs.
func (tx *Transaction) TotalOutputs() int {
	return len(tx.Outputs)
}

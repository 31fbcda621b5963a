package txmodel

// PaymentOutput describes one requested payment: an amount of sompi to be
// locked under the destination's script. The destination address has
// already been resolved to its locking script by the caller; the engine
// never performs address encoding itself.
type PaymentOutput struct {
	// Address is the destination address, carried for reporting only.
	Address Address

	// ScriptPublicKey is the resolved locking script of the destination.
	ScriptPublicKey ScriptPublicKey

	// Amount is the payment amount in sompi. It must be strictly
	// positive unless SpendAll is set.
	Amount uint64

	// SpendAll marks this output as a sweep destination: it receives
	// all remaining value after the other outputs and fees have been
	// satisfied. At most one output of a request may set it.
	SpendAll bool
}

// SumPayments returns the total amount requested by the given outputs.
// Sweep outputs contribute nothing; their value is determined at build
// time.
func SumPayments(outputs []*PaymentOutput) uint64 {
	var total uint64
	for _, output := range outputs {
		if output.SpendAll {
			continue
		}
		total += output.Amount
	}

	return total
}

package spend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dagsuite/dagwallet/txmodel"
)

var (
	// ErrNoOutputs is returned when a request carries no payment
	// outputs.
	ErrNoOutputs = errors.New("request has no outputs")

	// ErrNoChangeScript is returned when a request carries no change
	// destination.
	ErrNoChangeScript = errors.New("request has no change script")

	// ErrMultipleSweepOutputs is returned when more than one output of
	// a request is marked spend-all.
	ErrMultipleSweepOutputs = errors.New("more than one spend-all output")
)

// Request configures one generator run. Every recognized option is an
// explicit field; JSON decoding rejects unknown fields rather than
// silently accepting them.
type Request struct {
	// Entries is the coin set the run draws from. When empty, the
	// generator falls back to the mature coins of the snapshot it was
	// constructed with.
	Entries []*txmodel.UTXO `json:"entries"`

	// Outputs are the requested payments.
	Outputs []*txmodel.PaymentOutput `json:"outputs"`

	// ChangeAddress is the address leftover value returns to, carried
	// for reporting.
	ChangeAddress txmodel.Address `json:"changeAddress"`

	// ChangeScript is the resolved locking script of ChangeAddress. It
	// also locks the intermediate outputs of compounding transactions.
	ChangeScript txmodel.ScriptPublicKey `json:"changeScript"`

	// PriorityFee is an additional fee, in sompi, added on top of the
	// mass-derived fee of every produced transaction's final stage.
	PriorityFee uint64 `json:"priorityFee"`

	// FeeRate is the fee rate in sompi per gram of mass. Values below
	// one are clamped to one.
	FeeRate float64 `json:"feeRate"`

	// PriorityEntries are coins that must be consumed first, in the
	// given order, before any other coin is selected.
	PriorityEntries []*txmodel.UTXO `json:"priorityEntries"`

	// Payload is an opaque payload embedded in the final transaction.
	Payload []byte `json:"payload"`

	// SigOpCount is the number of signature operations every input will
	// execute. It affects mass estimation only, never selection.
	SigOpCount uint8 `json:"sigOpCount"`

	// MinimumSignatures is the number of signatures every input
	// requires. Multisig inputs cost more mass per signature; like
	// SigOpCount this affects mass estimation only.
	MinimumSignatures uint16 `json:"minimumSignatures"`
}

// UnmarshalJSON decodes a request, rejecting unknown fields.
func (r *Request) UnmarshalJSON(data []byte) error {
	type requestAlias Request

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var alias requestAlias
	if err := dec.Decode(&alias); err != nil {
		return err
	}

	*r = Request(alias)

	return nil
}

// normalize fills in defaults for optional fields.
func (r *Request) normalize() {
	if r.SigOpCount == 0 {
		r.SigOpCount = 1
	}
	if r.MinimumSignatures == 0 {
		r.MinimumSignatures = 1
	}
	if r.FeeRate < 1 {
		r.FeeRate = 1
	}
}

// validate checks the request for structural errors.
func (r *Request) validate() error {
	if len(r.Outputs) == 0 {
		return ErrNoOutputs
	}

	if len(r.ChangeScript.Script) == 0 {
		return ErrNoChangeScript
	}

	sweeps := 0
	for i, output := range r.Outputs {
		if output.SpendAll {
			sweeps++
			continue
		}

		if output.Amount == 0 {
			return fmt.Errorf("output %d has zero amount", i)
		}
	}

	if sweeps > 1 {
		return ErrMultipleSweepOutputs
	}

	return nil
}

// isSweep reports whether the request contains a spend-all output.
func (r *Request) isSweep() bool {
	for _, output := range r.Outputs {
		if output.SpendAll {
			return true
		}
	}

	return false
}

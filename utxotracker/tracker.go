package utxotracker

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/queue"

	"github.com/dagsuite/dagwallet/netparams"
	"github.com/dagsuite/dagwallet/txmodel"
)

var (
	// ErrTrackerShuttingDown is returned when an event is delivered to a
	// tracker that is shutting down.
	ErrTrackerShuttingDown = errors.New("utxo tracker shutting down")

	// ErrAddressNotTracked is returned when a balance or snapshot is
	// requested for an address the tracker was never told about.
	ErrAddressNotTracked = errors.New("address not tracked")
)

// ChainTipEvent describes one advancement of the chain tip: the new DAA
// score, the set of coins the tip added for tracked addresses and the set
// of outpoints it removed. Removals cover both confirmed spends and reorg
// rollbacks.
type ChainTipEvent struct {
	// DAAScore is the DAA score of the new chain tip.
	DAAScore uint64

	// Added holds the coins created at or below the new tip.
	Added []*txmodel.UTXO

	// Removed holds the outpoints of coins that are no longer unspent.
	Removed []txmodel.Outpoint
}

// addressEntry partitions one address' coins into the mature and pending
// sets. The two maps are always disjoint.
type addressEntry struct {
	mature  map[txmodel.Outpoint]*txmodel.UTXO
	pending map[txmodel.Outpoint]*txmodel.UTXO
}

func newAddressEntry() *addressEntry {
	return &addressEntry{
		mature:  make(map[txmodel.Outpoint]*txmodel.UTXO),
		pending: make(map[txmodel.Outpoint]*txmodel.UTXO),
	}
}

// Config holds the dependencies of a Tracker.
type Config struct {
	// Params supplies the maturity periods.
	Params *netparams.Params
}

// Tracker maintains, for every tracked address, the partition of its
// unspent outputs into mature and pending sets, keyed by outpoint and
// advanced by chain tip events. Exactly one ingestion path mutates the
// tracker; any number of readers may take snapshots concurrently. A
// snapshot is a deep copy, so a generator run holding one is never
// perturbed by later chain tip events.
type Tracker struct {
	started int32 // To be used atomically.
	stopped int32 // To be used atomically.

	cfg Config

	mtx sync.RWMutex

	// currentDAAScore is the DAA score of the last applied chain tip
	// event. Maturity is always evaluated against it.
	currentDAAScore uint64

	// addresses maps every tracked address to its coin partition.
	addresses map[txmodel.Address]*addressEntry

	// events buffers chain tip events delivered by the feed so a slow
	// promotion pass never blocks the event source.
	events *queue.ConcurrentQueue

	quit chan struct{}
	wg   sync.WaitGroup
}

// New returns a Tracker with no tracked addresses.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:       cfg,
		addresses: make(map[txmodel.Address]*addressEntry),
		events:    queue.NewConcurrentQueue(20),
		quit:      make(chan struct{}),
	}
}

// Start launches the event handler goroutine that consumes buffered chain
// tip events.
func (t *Tracker) Start() error {
	if !atomic.CompareAndSwapInt32(&t.started, 0, 1) {
		return nil
	}

	log.Info("UTXO maturity tracker starting")

	t.events.Start()

	t.wg.Add(1)
	go t.eventHandler()

	return nil
}

// Stop signals the tracker to shut down and waits for the event handler
// to exit.
func (t *Tracker) Stop() error {
	if !atomic.CompareAndSwapInt32(&t.stopped, 0, 1) {
		return nil
	}

	log.Info("UTXO maturity tracker shutting down...")

	close(t.quit)
	t.wg.Wait()
	t.events.Stop()

	log.Debug("UTXO maturity tracker shutdown complete")

	return nil
}

// eventHandler applies chain tip events in delivery order.
func (t *Tracker) eventHandler() {
	defer t.wg.Done()

	for {
		select {
		case event := <-t.events.ChanOut():
			t.OnChainTipAdvance(event.(*ChainTipEvent))

		case <-t.quit:
			return
		}
	}
}

// DeliverChainTip hands a chain tip event to the tracker for asynchronous
// application. It only fails if the tracker is shutting down.
func (t *Tracker) DeliverChainTip(event *ChainTipEvent) error {
	select {
	case t.events.ChanIn() <- event:
		return nil
	case <-t.quit:
		return ErrTrackerShuttingDown
	}
}

// TrackAddresses registers addresses to observe. Tracking an address that
// is already tracked is a no-op.
func (t *Tracker) TrackAddresses(addrs ...txmodel.Address) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	for _, addr := range addrs {
		if _, ok := t.addresses[addr]; ok {
			continue
		}

		t.addresses[addr] = newAddressEntry()
		log.Debugf("Tracking address %v", addr)
	}
}

// UnregisterAddresses stops observing the given addresses, discarding
// their coin partitions. Unregistering an unknown address is a no-op.
func (t *Tracker) UnregisterAddresses(addrs ...txmodel.Address) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	for _, addr := range addrs {
		if _, ok := t.addresses[addr]; !ok {
			continue
		}

		delete(t.addresses, addr)
		log.Debugf("Unregistered address %v", addr)
	}
}

// OnChainTipAdvance applies one chain tip event transactionally: removals
// are deleted from both sets, additions are inserted into the pending or
// mature set according to the immediate maturity test, then pending coins
// whose maturity period has elapsed under the new DAA score are promoted.
// Chain tip sync is best effort idempotent: removal of an untracked coin
// is logged and ignored, never fatal.
func (t *Tracker) OnChainTipAdvance(event *ChainTipEvent) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if event.DAAScore < t.currentDAAScore {
		log.Warnf("Ignoring chain tip event with regressing DAA "+
			"score %d (current %d)", event.DAAScore,
			t.currentDAAScore)
		return
	}

	t.currentDAAScore = event.DAAScore

	for _, outpoint := range event.Removed {
		t.removeLocked(outpoint)
	}

	for _, utxo := range event.Added {
		t.addLocked(utxo)
	}

	t.promoteLocked()

	log.Tracef("Chain tip advanced to DAA score %d: %d added, "+
		"%d removed", event.DAAScore, len(event.Added),
		len(event.Removed))
}

// removeLocked deletes the coin with the given outpoint from whichever set
// holds it. It must be called with the tracker mutex held.
func (t *Tracker) removeLocked(outpoint txmodel.Outpoint) {
	for _, entry := range t.addresses {
		if _, ok := entry.mature[outpoint]; ok {
			delete(entry.mature, outpoint)
			return
		}
		if _, ok := entry.pending[outpoint]; ok {
			delete(entry.pending, outpoint)
			return
		}
	}

	log.Debugf("Removal of untracked outpoint %v ignored", outpoint)
}

// addLocked inserts a coin into its owner's pending or mature set,
// depending on the immediate maturity test. Coins owned by untracked
// addresses are dropped. It must be called with the tracker mutex held.
func (t *Tracker) addLocked(utxo *txmodel.UTXO) {
	entry, ok := t.addresses[utxo.Address]
	if !ok {
		log.Debugf("Dropping coin %v for untracked address %v",
			utxo.Outpoint, utxo.Address)
		return
	}

	period := t.cfg.Params.MaturityPeriod(utxo.IsCoinbase)
	if utxo.IsMature(t.currentDAAScore, period) {
		entry.mature[utxo.Outpoint] = utxo
	} else {
		entry.pending[utxo.Outpoint] = utxo
	}
}

// promoteLocked moves every pending coin whose maturity period has elapsed
// into the mature set. It must be called with the tracker mutex held.
func (t *Tracker) promoteLocked() {
	for addr, entry := range t.addresses {
		for outpoint, utxo := range entry.pending {
			period := t.cfg.Params.MaturityPeriod(utxo.IsCoinbase)
			if !utxo.IsMature(t.currentDAAScore, period) {
				continue
			}

			delete(entry.pending, outpoint)
			entry.mature[outpoint] = utxo

			log.Debugf("Coin %v of %v matured at DAA score %d",
				outpoint, addr, t.currentDAAScore)
		}
	}
}

// CurrentDAAScore returns the DAA score of the last applied chain tip
// event.
func (t *Tracker) CurrentDAAScore() uint64 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	return t.currentDAAScore
}

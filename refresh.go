package shelterboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DatasetHolder provides atomic access to the currently served dataset.
// Refreshes build a complete new Dataset and swap it in; readers never see a
// partially loaded table.
type DatasetHolder struct {
	mu sync.RWMutex
	ds *Dataset
}

// NewDatasetHolder wraps an initial dataset, which may be nil when the
// server starts before the first successful fetch.
func NewDatasetHolder(ds *Dataset) *DatasetHolder {
	return &DatasetHolder{ds: ds}
}

// Current returns the served dataset, or nil when none has loaded yet.
func (h *DatasetHolder) Current() *Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ds
}

func (h *DatasetHolder) swap(ds *Dataset) {
	h.mu.Lock()
	h.ds = ds
	h.mu.Unlock()
}

// Refresher re-fetches the dataset from its source, swaps it into the
// holder, persists a snapshot, and notifies connected dashboards. A failed
// refresh keeps the previous dataset serving.
type Refresher struct {
	source   Source
	holder   *DatasetHolder
	store    *SnapshotStore        // optional
	hub      *Hub                  // optional
	notifyFn func(ds *Dataset)     // optional, invoked after a swap
	interval time.Duration

	// refreshMu serializes refreshes so a slow fetch and the ticker never
	// overlap.
	refreshMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRefresher wires a refresher. store and hub may be nil.
func NewRefresher(source Source, holder *DatasetHolder, store *SnapshotStore, hub *Hub, interval time.Duration) *Refresher {
	return &Refresher{
		source:   source,
		holder:   holder,
		store:    store,
		hub:      hub,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// OnSwap registers a callback invoked with each newly swapped dataset.
// Used by the remote-write publisher.
func (r *Refresher) OnSwap(fn func(ds *Dataset)) {
	r.notifyFn = fn
}

// Refresh fetches and parses the dataset once. It returns the dataset now
// being served and whether it changed. Unchanged payloads (same checksum)
// skip the swap.
func (r *Refresher) Refresh(ctx context.Context) (*Dataset, bool, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	data, err := r.source.Fetch(ctx)
	if err != nil {
		return r.holder.Current(), false, err
	}
	ds, err := LoadCSV(data, r.source.Describe())
	if err != nil {
		return r.holder.Current(), false, err
	}

	if prev := r.holder.Current(); prev != nil && prev.Checksum() == ds.Checksum() {
		return prev, false, nil
	}

	r.holder.swap(ds)
	slog.Info("dataset refreshed",
		"source", r.source.Describe(),
		"rows", ds.RowCount(),
		"orgs", ds.OrgCount(),
		"checksum", ds.Checksum())

	if r.store != nil {
		if _, err := r.store.Save(data, r.source.Describe(), ds.Checksum()); err != nil {
			slog.Warn("snapshot save failed", "err", err)
		}
	}
	if r.hub != nil {
		r.hub.Broadcast("dataset-updated", ds.Checksum())
	}
	if r.notifyFn != nil {
		r.notifyFn(ds)
	}
	return ds, true, nil
}

// Start launches the periodic refresh loop. With a zero interval the loop
// is skipped and refreshes happen only via Refresh.
func (r *Refresher) Start() {
	if r.interval <= 0 {
		return
	}
	go r.loop()
}

func (r *Refresher) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.interval)
			if _, _, err := r.Refresh(ctx); err != nil {
				slog.Warn("background refresh failed, serving previous dataset", "err", err)
			}
			cancel()
		}
	}
}

// Stop terminates the background loop.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flow is a thin facade over the external Flow Engine. It
// does not interpret flow state itself; it only adds catalog caching
// and cache invalidation around findFlowByIntent.
package flow

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Handle is an opaque flow-run handle. The core never interprets its
// fields beyond passing them back to the Engine.
type Handle struct {
	FlowID         string
	FlowRunID      string
	CurrentStateID string
}

// Button is one inline quick-reply rewritten by the transport layer.
type Button struct {
	Label string
	Value string
}

// ProcessResult is the common shape processActiveFlow/startFlow
// return.
type ProcessResult struct {
	Response  string
	Buttons   []Button
	Metadata  map[string]any
	Completed bool
}

// InitContext seeds a newly started flow with the triggering
// message, intent, entities, and user-preference context.
type InitContext struct {
	Message               string
	Intent                string
	Entities              map[string]any
	UserPreferenceContext map[string]any
}

// FlowDef is one catalog entry findFlowByIntent resolves to.
type FlowDef struct {
	ID     string
	Intent string
	Module string
}

// Engine is the external Flow Engine capability the Dispatcher is a
// facade over.
type Engine interface {
	GetActiveFlow(ctx context.Context, key string) (*Handle, error)
	IsInWaitState(ctx context.Context, key string) (bool, error)
	ProcessActiveFlow(ctx context.Context, key, message, intent string, confidence float64) (ProcessResult, error)
	StartFlow(ctx context.Context, flowID string, initCtx InitContext) (ProcessResult, error)
	SuspendFlow(ctx context.Context, key string) error
	CancelFlow(ctx context.Context, key string) error
	ResumeSuspendedFlow(ctx context.Context, key string) (bool, error)
}

// CatalogSource fetches the full flow catalog, e.g. from the PHP
// backend or a config file.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) ([]FlowDef, error)
}

const catalogTTL = 5 * time.Minute

// Dispatcher wraps an Engine with a catalog cache: TTL 5 minutes,
// explicit ClearFlowCache, and convergent concurrent loads via
// singleflight.
type Dispatcher struct {
	Engine  Engine
	Catalog CatalogSource

	mu        sync.RWMutex
	cached    []FlowDef
	expiresAt time.Time
	group     singleflight.Group
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(engine Engine, catalog CatalogSource) *Dispatcher {
	return &Dispatcher{Engine: engine, Catalog: catalog}
}

func (d *Dispatcher) GetActiveFlow(ctx context.Context, key string) (*Handle, error) {
	return d.Engine.GetActiveFlow(ctx, key)
}

func (d *Dispatcher) IsInWaitState(ctx context.Context, key string) (bool, error) {
	return d.Engine.IsInWaitState(ctx, key)
}

func (d *Dispatcher) ProcessActiveFlow(ctx context.Context, key, message, intent string, confidence float64) (ProcessResult, error) {
	return d.Engine.ProcessActiveFlow(ctx, key, message, intent, confidence)
}

func (d *Dispatcher) StartFlow(ctx context.Context, flowID string, initCtx InitContext) (ProcessResult, error) {
	return d.Engine.StartFlow(ctx, flowID, initCtx)
}

func (d *Dispatcher) SuspendFlow(ctx context.Context, key string) error {
	return d.Engine.SuspendFlow(ctx, key)
}

func (d *Dispatcher) CancelFlow(ctx context.Context, key string) error {
	return d.Engine.CancelFlow(ctx, key)
}

func (d *Dispatcher) ResumeSuspendedFlow(ctx context.Context, key string) (bool, error) {
	return d.Engine.ResumeSuspendedFlow(ctx, key)
}

// FindFlowByIntent resolves a flow definition from the cached
// catalog, refreshing it on expiry.
func (d *Dispatcher) FindFlowByIntent(ctx context.Context, intent, module string) (*FlowDef, error) {
	catalog, err := d.getCatalog(ctx)
	if err != nil {
		return nil, err
	}
	for _, def := range catalog {
		if def.Intent == intent && (def.Module == "" || def.Module == module) {
			found := def
			return &found, nil
		}
	}
	return nil, nil
}

// ClearFlowCache forces the next FindFlowByIntent to refetch,
// independent of TTL, used by tests and by the optional Consul watch
// when the remote catalog source signals a change.
func (d *Dispatcher) ClearFlowCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
	d.expiresAt = time.Time{}
}

func (d *Dispatcher) getCatalog(ctx context.Context) ([]FlowDef, error) {
	d.mu.RLock()
	if d.cached != nil && time.Now().Before(d.expiresAt) {
		defer d.mu.RUnlock()
		return d.cached, nil
	}
	d.mu.RUnlock()

	v, err, _ := d.group.Do("catalog", func() (any, error) {
		// Re-check after acquiring the singleflight slot: another
		// goroutine may have refreshed the cache while this one
		// waited.
		d.mu.RLock()
		if d.cached != nil && time.Now().Before(d.expiresAt) {
			cached := d.cached
			d.mu.RUnlock()
			return cached, nil
		}
		d.mu.RUnlock()

		fresh, err := d.Catalog.FetchCatalog(ctx)
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		d.cached = fresh
		d.expiresAt = time.Now().Add(catalogTTL)
		d.mu.Unlock()

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]FlowDef), nil
}

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

package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
)

const consulWaitTime = 30 * time.Second

// WatchConsulKey runs a Consul blocking-query watch against key,
// calling d.ClearFlowCache whenever the key's ModifyIndex changes.
// This is an optional remote-invalidation path; TTL expiry alone
// already guarantees the cache never serves the catalog more than 5
// minutes stale, so a missing or unreachable Consul is never fatal to
// startup.
func (d *Dispatcher) WatchConsulKey(ctx context.Context, client *api.Client, key string) {
	var lastIndex uint64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opts := (&api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  consulWaitTime,
		}).WithContext(ctx)
		pair, meta, err := client.KV().Get(key, opts)
		if err != nil {
			slog.Warn("flow catalog consul watch error", "key", key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if pair == nil {
			lastIndex = meta.LastIndex
			continue
		}
		if lastIndex != 0 && meta.LastIndex != lastIndex {
			d.ClearFlowCache()
		}
		lastIndex = meta.LastIndex
	}
}

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

// Package search implements the search_products function the LLM's
// function-calling loop invokes: zone resolution, query
// parsing/merging, module resolution, a semantic-first /
// keyword-fallback search branch, and distance enrichment.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/mangwale/assistant-core/internal/httpclient"
	"github.com/mangwale/assistant-core/pkg/embedder"
	"github.com/mangwale/assistant-core/pkg/queryparser"
	"github.com/mangwale/assistant-core/pkg/routing"
	"github.com/mangwale/assistant-core/pkg/vector"
)

// Args is the search_products function's caller-supplied parameters,
// later merged with what the query parser infers.
type Args struct {
	Query    string   `json:"query" jsonschema:"required,description=Free-text search query"`
	Module   string   `json:"module,omitempty" jsonschema:"description=Explicit module override"`
	Veg      *bool    `json:"veg,omitempty" jsonschema:"description=Vegetarian filter"`
	PriceMin *float64 `json:"priceMin,omitempty" jsonschema:"description=Minimum price"`
	PriceMax *float64 `json:"priceMax,omitempty" jsonschema:"description=Maximum price"`
	Category string   `json:"category,omitempty" jsonschema:"description=Cuisine/category tag"`
	Limit    int      `json:"limit,omitempty" jsonschema:"description=Max results,default=20"`
}

// Item is one search result entry.
type Item struct {
	ID         string
	Name       string
	Price      float64
	DistanceKM *float64
	Payload    map[string]any
}

// Mode is the branch that ultimately served the request.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
)

// Response is the uniform response shape across both branches.
type Response struct {
	Total   int
	Showing int
	Items   []Item
	Message string
	Mode    Mode
	ZoneID  int
	Warning string
}

// ZoneResolver resolves a zone id from a location, used when the
// session has no cached zone.
type ZoneResolver interface {
	ResolveZone(ctx context.Context, lat, lng float64) (zoneID int, zoneName string, err error)
}

// ProfileWriter fire-and-forget records a search in the user's
// profile; failures are logged and swallowed, never surfaced to the
// caller.
type ProfileWriter interface {
	RecordSearch(ctx context.Context, userID int64, query string) error
}

// KeywordSearcher is the HTTP search-service fallback branch.
type KeywordSearcher interface {
	Search(ctx context.Context, module, query string, filter vector.Filter, limit int) ([]Item, error)
}

// RequestContext is everything Execute needs beyond Args: the
// session-derived state the orchestrator's AgentContext carries.
type RequestContext struct {
	UserID               *int64
	Module               string // context module, lowest module-resolution precedence
	ZoneID               int
	HasZoneID            bool
	Location             *LatLng
	UserIsVegetarian     bool
	UserVegSetExplicitly bool
}

// LatLng is a plain coordinate pair.
type LatLng struct {
	Lat, Lng float64
}

// Executor wires together the collaborators search_products composes.
type Executor struct {
	Zones    ZoneResolver
	Embedder embedder.Embedder
	Index    vector.Index
	Keyword  KeywordSearcher
	Routing  routing.Client
	Profiles ProfileWriter
	HTTP     *httpclient.Client
	Logger   *slog.Logger
}

const defaultLimit = 20

// moduleAliases normalizes the colloquial module names users type.
var moduleAliases = map[string]string{
	"dukan":   "ecom",
	"shop":    "ecom",
	"grocery": "ecom",
	"kirana":  "ecom",
}

// Execute runs the full search_products pipeline.
func (e *Executor) Execute(ctx context.Context, rctx RequestContext, args Args) (Response, error) {
	zoneID, hasZone, zoneWarning := e.resolveZone(ctx, rctx)

	parsed := queryparser.Parse(args.Query)
	merged := mergeArgsWithParsed(args, parsed)
	applyVegDefault(&merged, rctx)

	module := resolveModule(merged.TargetModule, args.Module, rctx.Module, args.Query)

	limit := args.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	filter := vector.Filter{
		Veg:      merged.Veg,
		PriceMin: merged.PriceMin,
		PriceMax: merged.PriceMax,
		Category: merged.Category,
	}
	if hasZone {
		filter.ZoneID = zoneID
		filter.HasZoneID = true
	}

	items, mode, err := e.runBranches(ctx, module, merged.CleanQuery, filter, limit)
	if err != nil {
		return Response{}, err
	}

	if e.Routing != nil && rctx.Location != nil {
		items = e.enrichDistance(ctx, *rctx.Location, items)
	}

	if rctx.UserID != nil && e.Profiles != nil {
		go func() {
			if err := e.Profiles.RecordSearch(context.Background(), *rctx.UserID, args.Query); err != nil {
				e.logger().Warn("search: record search history failed", "error", err)
			}
		}()
	}

	resp := Response{
		Total:   len(items),
		Showing: len(items),
		Items:   items,
		Message: resultMessage(len(items), module),
		Mode:    mode,
		ZoneID:  zoneID,
		Warning: zoneWarning,
	}
	return resp, nil
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// resolveZone reuses a cached zone, else resolves from the user's
// location; a failure degrades to a warning banner rather than
// blocking the search.
func (e *Executor) resolveZone(ctx context.Context, rctx RequestContext) (zoneID int, has bool, warning string) {
	if rctx.HasZoneID {
		return rctx.ZoneID, true, ""
	}
	if rctx.Location == nil || e.Zones == nil {
		return 0, false, ""
	}

	id, _, err := e.Zones.ResolveZone(ctx, rctx.Location.Lat, rctx.Location.Lng)
	if err != nil {
		e.logger().Warn("search: zone resolution failed", "error", err)
		return 0, false, "Could not confirm your delivery zone; results may not all be serviceable."
	}
	return id, true, ""
}

func mergeArgsWithParsed(args Args, parsed queryparser.Parsed) queryparser.Parsed {
	caller := queryparser.Parsed{
		CleanQuery:   parsed.CleanQuery,
		Veg:          args.Veg,
		PriceMin:     args.PriceMin,
		PriceMax:     args.PriceMax,
		Category:     args.Category,
		TargetModule: args.Module,
	}
	return queryparser.Merge(caller, parsed, queryparser.Parsed{})
}

// applyVegDefault applies the user-preference "vegetarian" signal
// only if neither the caller nor the parser already decided Veg.
func applyVegDefault(merged *queryparser.Parsed, rctx RequestContext) {
	if merged.Veg != nil {
		return
	}
	if rctx.UserVegSetExplicitly && rctx.UserIsVegetarian {
		v := true
		merged.Veg = &v
	}
}

// resolveModule applies the module precedence: explicit args.module
// > parsed targetModule > context module, with alias normalization
// and a final keyword sniff.
func resolveModule(parsedModule, argsModule, contextModule, query string) string {
	candidate := argsModule
	if candidate == "" {
		candidate = parsedModule
	}
	if candidate == "" {
		candidate = contextModule
	}
	candidate = strings.ToLower(strings.TrimSpace(candidate))

	if alias, ok := moduleAliases[candidate]; ok {
		return alias
	}
	if candidate != "" {
		return candidate
	}
	return sniffModule(query)
}

// sniffModule is the last-resort module guess off the raw query text.
func sniffModule(query string) string {
	lowered := strings.ToLower(query)
	switch {
	case strings.Contains(lowered, "restaurant") || strings.Contains(lowered, "cafe"):
		return "food"
	default:
		return "ecom"
	}
}

func (e *Executor) runBranches(ctx context.Context, module, query string, filter vector.Filter, limit int) ([]Item, Mode, error) {
	if items, ok := e.trySemantic(ctx, module, query, filter, limit); ok {
		return items, ModeSemantic, nil
	}

	if e.Keyword == nil {
		return nil, ModeKeyword, fmt.Errorf("search: no keyword fallback configured")
	}
	items, err := e.Keyword.Search(ctx, module, query, filter, limit)
	if err != nil {
		return nil, ModeKeyword, fmt.Errorf("search: keyword branch: %w", err)
	}
	return items, ModeKeyword, nil
}

// trySemantic is the semantic branch: embed, k-NN query k=100 against
// collection "<module>_items_v2", falling through to the keyword
// branch on any failure (embedding unavailable, index error).
func (e *Executor) trySemantic(ctx context.Context, module, query string, filter vector.Filter, limit int) ([]Item, bool) {
	if e.Embedder == nil || e.Index == nil {
		return nil, false
	}

	embedding, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		e.logger().Info("search: embedding unavailable, falling back to keyword", "error", err)
		return nil, false
	}

	collection := module + "_items_v2"
	const semanticK = 100
	hits, err := e.Index.Query(ctx, collection, embedding, semanticK, filter)
	if err != nil {
		e.logger().Info("search: semantic query failed, falling back to keyword", "error", err)
		return nil, false
	}

	items := make([]Item, 0, min(len(hits), limit))
	for i, h := range hits {
		if i >= limit {
			break
		}
		items = append(items, hitToItem(h))
	}
	return items, true
}

// hitToItem reads name/price out of a Hit's Payload. Backends
// disagree on payload value types (qdrant/pinecone decode to native
// float64/bool, chromem stores everything as string), so both shapes
// are accepted here rather than in each backend.
func hitToItem(h vector.Hit) Item {
	item := Item{ID: h.ID, Payload: h.Payload}
	if name, ok := h.Payload["name"].(string); ok {
		item.Name = name
	}
	switch price := h.Payload["price"].(type) {
	case float64:
		item.Price = price
	case string:
		if v, err := strconv.ParseFloat(price, 64); err == nil {
			item.Price = v
		}
	}
	return item
}

// enrichDistance attaches distance_km and sorts ascending; any
// routing failure leaves items unenriched rather than failing the
// search.
func (e *Executor) enrichDistance(ctx context.Context, origin LatLng, items []Item) []Item {
	dests := make([][2]float64, 0, len(items))
	for _, it := range items {
		lat, _ := it.Payload["lat"].(float64)
		lng, _ := it.Payload["lng"].(float64)
		dests = append(dests, [2]float64{lat, lng})
	}

	distances, err := e.Routing.Distances(ctx, origin.Lat, origin.Lng, dests)
	if err != nil || len(distances) != len(items) {
		e.logger().Info("search: distance enrichment skipped", "error", err)
		return items
	}

	for i := range items {
		d := distances[i]
		items[i].DistanceKM = &d
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DistanceKM == nil {
			return false
		}
		if items[j].DistanceKM == nil {
			return true
		}
		return *items[i].DistanceKM < *items[j].DistanceKM
	})
	return items
}

func resultMessage(count int, module string) string {
	if count == 0 {
		return fmt.Sprintf("I couldn't find anything matching that in %s right now.", module)
	}
	return fmt.Sprintf("Found %d result(s).", count)
}

// HTTPKeywordSearcher implements KeywordSearcher against the
// operator-configured SEARCH_API_URL/OPENSEARCH_URL.
type HTTPKeywordSearcher struct {
	Client  *httpclient.Client
	BaseURL string
}

type keywordSearchResponse struct {
	Items []struct {
		ID      string         `json:"id"`
		Name    string         `json:"name"`
		Price   float64        `json:"price"`
		Payload map[string]any `json:"payload"`
	} `json:"items"`
}

func (s *HTTPKeywordSearcher) Search(ctx context.Context, module, query string, filter vector.Filter, limit int) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("search: build keyword request: %w", err)
	}
	q := req.URL.Query()
	q.Set("module", module)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()
	applyFilterQuery(req, filter)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: keyword request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: keyword service returned %d", resp.StatusCode)
	}

	var out keywordSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search: decode keyword response: %w", err)
	}

	items := make([]Item, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, Item{ID: it.ID, Name: it.Name, Price: it.Price, Payload: it.Payload})
	}
	return items, nil
}

func applyFilterQuery(req *http.Request, filter vector.Filter) {
	q := req.URL.Query()
	if filter.Veg != nil {
		q.Set("veg", fmt.Sprintf("%t", *filter.Veg))
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.HasZoneID {
		q.Set("zone_id", fmt.Sprintf("%d", filter.ZoneID))
	}
	if filter.PriceMin != nil {
		q.Set("price_min", fmt.Sprintf("%f", *filter.PriceMin))
	}
	if filter.PriceMax != nil {
		q.Set("price_max", fmt.Sprintf("%f", *filter.PriceMax))
	}
	req.URL.RawQuery = q.Encode()
}

var _ KeywordSearcher = (*HTTPKeywordSearcher)(nil)

package yields

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/yetify/yetify-cli/internal/httpx"
	"github.com/rs/zerolog"
)

const defaultFeedBase = "https://yields.llama.fi"

// Opportunity is one pool from the yield feed, used to sanity-check a
// plan's APY expectations. Best effort: an unreachable feed degrades
// to empty results and never blocks a lifecycle operation.
type Opportunity struct {
	Chain    string  `json:"chain"`
	Protocol string  `json:"protocol"`
	Symbol   string  `json:"symbol"`
	APY      float64 `json:"apy"`
	TVLUSD   float64 `json:"tvlUsd"`
}

// Feed fetches pool yields with a cache in front.
type Feed struct {
	client   *httpx.Client
	cache    *Cache
	base     string
	ttl      time.Duration
	maxStale time.Duration
	log      zerolog.Logger
}

func NewFeed(client *httpx.Client, cache *Cache, log zerolog.Logger) *Feed {
	return &Feed{
		client:   client,
		cache:    cache,
		base:     defaultFeedBase,
		ttl:      5 * time.Minute,
		maxStale: 30 * time.Minute,
		log:      log.With().Str("component", "yield_feed").Logger(),
	}
}

type poolsEnvelope struct {
	Data []struct {
		Chain   string   `json:"chain"`
		Project string   `json:"project"`
		Symbol  string   `json:"symbol"`
		APY     *float64 `json:"apy"`
		TVLUSD  *float64 `json:"tvlUsd"`
	} `json:"data"`
}

// Top returns the highest-TVL pools matching the chain and protocol
// filters. Feed failures are logged and read as an empty list.
func (f *Feed) Top(ctx context.Context, chain, protocol string, limit int) []Opportunity {
	if limit <= 0 {
		limit = 10
	}
	raw, ok := f.fetchPools(ctx)
	if !ok {
		return []Opportunity{}
	}
	var env poolsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		f.log.Warn().Err(err).Msg("decode yield feed failed")
		return []Opportunity{}
	}

	chain = strings.ToLower(strings.TrimSpace(chain))
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	out := make([]Opportunity, 0)
	for _, p := range env.Data {
		if chain != "" && strings.ToLower(p.Chain) != chain {
			continue
		}
		if protocol != "" && !strings.Contains(strings.ToLower(p.Project), protocol) {
			continue
		}
		op := Opportunity{Chain: p.Chain, Protocol: p.Project, Symbol: p.Symbol}
		if p.APY != nil {
			op.APY = *p.APY
		}
		if p.TVLUSD != nil {
			op.TVLUSD = *p.TVLUSD
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TVLUSD > out[j].TVLUSD })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *Feed) fetchPools(ctx context.Context) ([]byte, bool) {
	const key = "yields:pools"
	if f.cache != nil {
		if res, err := f.cache.Get(key, f.maxStale); err == nil && res.Hit && !res.Stale {
			return res.Value, true
		}
	}

	var payload json.RawMessage
	err := f.client.GetJSON(ctx, f.base+"/pools", &payload)
	if err == nil {
		if f.cache != nil {
			if cerr := f.cache.Set(key, payload, f.ttl); cerr != nil {
				f.log.Debug().Err(cerr).Msg("cache yield feed failed")
			}
		}
		return payload, true
	}

	// Fall back to a stale cache entry before giving up.
	if f.cache != nil {
		if res, cerr := f.cache.Get(key, f.maxStale); cerr == nil && res.Hit {
			f.log.Debug().Dur("age", res.Age).Msg("serving stale yield feed")
			return res.Value, true
		}
	}
	f.log.Warn().Err(err).Msg("yield feed unavailable")
	return nil, false
}

// SetBase overrides the feed endpoint. Tests only.
func (f *Feed) SetBase(base string) { f.base = base }

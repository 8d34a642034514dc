package events

import (
	"context"
	"log"

	"circles-flow/internal/domain"
	"circles-flow/internal/storage"
	"circles-flow/internal/tokeninfo"
)

// CacheWarmer feeds token-deployment events into the classifier cache
// so freshly deployed wrappers classify without an RPC round trip.
type CacheWarmer struct {
	cache *tokeninfo.Cache

	// store optionally persists warmed rows.
	store storage.TokenInfoStore

	verbose bool
}

// NewCacheWarmer creates a warmer targeting the given cache. Store is
// optional; when set, warmed rows are also persisted.
func NewCacheWarmer(cache *tokeninfo.Cache, store storage.TokenInfoStore) *CacheWarmer {
	return &CacheWarmer{cache: cache, store: store}
}

// SetVerbose enables per-event logging.
func (w *CacheWarmer) SetVerbose(v bool) {
	w.verbose = v
}

// Run consumes events until the channel closes or the context ends.
func (w *CacheWarmer) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *CacheWarmer) handle(ctx context.Context, ev Event) {
	row, ok := rowFromEvent(ev)
	if !ok {
		return
	}

	w.cache.Put(row)
	if w.verbose {
		log.Printf("[events] warmed %s as %s", row.Token, row.Type)
	}

	if w.store != nil {
		if err := w.store.Upsert(ctx, row); err != nil {
			log.Printf("[events] persist warmed row for %s: %v", row.Token, err)
		}
	}
}

// rowFromEvent maps a deployment event onto a token-info row. Events
// that do not introduce a token return ok=false.
func rowFromEvent(ev Event) (domain.TokenInfoRow, bool) {
	var token, owner string
	var typ domain.TokenType

	switch domain.TokenType(ev.Name) {
	case domain.TokenTypeV2Human:
		token, owner = ev.Values["avatar"], ev.Values["avatar"]
		typ = domain.TokenTypeV2Human
	case domain.TokenTypeV2Group:
		token, owner = ev.Values["group"], ev.Values["group"]
		typ = domain.TokenTypeV2Group
	case domain.TokenTypeWrapperInflationary, domain.TokenTypeWrapperDemurraged:
		token, owner = ev.Values["erc20Wrapper"], ev.Values["avatar"]
		typ = domain.TokenType(ev.Name)
	default:
		return domain.TokenInfoRow{}, false
	}

	tokenAddr, err := domain.ParseAddress(token)
	if err != nil {
		return domain.TokenInfoRow{}, false
	}
	ownerAddr, err := domain.ParseAddress(owner)
	if err != nil {
		return domain.TokenInfoRow{}, false
	}

	return domain.TokenInfoRow{
		Token:   tokenAddr,
		Type:    typ,
		Owner:   ownerAddr,
		Version: 2,
	}, true
}

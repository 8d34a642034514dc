package tokeninfo

import (
	"context"
	"math/big"

	"circles-flow/internal/demurrage"
	"circles-flow/internal/domain"
)

// Classifier resolves token classification rows through a cache and
// computes wrapper aggregates over transfer paths.
type Classifier struct {
	source Source
	cache  *Cache

	// Conversion functions between demurraged and static units, swappable
	// in tests. Defaults come from a wall-clock demurrage.Converter.
	DemurragedToStatic func(*big.Int) *big.Int
	StaticToDemurraged func(*big.Int) *big.Int
}

// NewClassifier creates a classifier over the given source. cache may be
// nil; then a default-sized cache is created.
func NewClassifier(source Source, cache *Cache) *Classifier {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	conv := demurrage.NewConverter()
	return &Classifier{
		source:             source,
		cache:              cache,
		DemurragedToStatic: conv.AttoCirclesToAttoStaticCircles,
		StaticToDemurraged: conv.AttoStaticCirclesToAttoCircles,
	}
}

// Cache exposes the underlying cache for warming and stats.
func (c *Classifier) Cache() *Cache {
	return c.cache
}

// Classify resolves a single token.
func (c *Classifier) Classify(ctx context.Context, token domain.Address) (domain.TokenInfoRow, error) {
	rows, err := c.ClassifyBatch(ctx, []domain.Address{token})
	if err != nil {
		return domain.TokenInfoRow{}, err
	}
	return rows[token], nil
}

// ClassifyBatch resolves rows for all given tokens. Cached rows are
// served directly; the rest are fetched in one batch. If any token
// remains unresolved the whole batch fails with *TokenError, since a
// path touching an unclassifiable token cannot be safely rewritten.
func (c *Classifier) ClassifyBatch(ctx context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	out := make(map[domain.Address]domain.TokenInfoRow, len(tokens))

	var misses []domain.Address
	for _, token := range tokens {
		if _, seen := out[token]; seen {
			continue
		}
		if row, ok := c.cache.Get(token); ok {
			out[token] = row
		} else {
			misses = append(misses, token)
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.source.TokenInfoBatch(ctx, misses)
	if err != nil {
		return nil, err
	}

	var unresolved []domain.Address
	for _, token := range misses {
		row, ok := fetched[token]
		if !ok {
			unresolved = append(unresolved, token)
			continue
		}
		out[token] = row
		c.cache.Put(row)
	}

	if len(unresolved) > 0 {
		return nil, &TokenError{Tokens: unresolved}
	}
	return out, nil
}

// ClassifyPath resolves rows for every token owner appearing in the path.
func (c *Classifier) ClassifyPath(ctx context.Context, path *domain.Path) (map[domain.Address]domain.TokenInfoRow, error) {
	seen := make(map[domain.Address]bool, len(path.Steps))
	var tokens []domain.Address
	for _, step := range path.Steps {
		if !seen[step.TokenOwner] {
			seen[step.TokenOwner] = true
			tokens = append(tokens, step.TokenOwner)
		}
	}
	return c.ClassifyBatch(ctx, tokens)
}

// WrappedTotal is the aggregate value flowing through one wrapper token
// within a path.
type WrappedTotal struct {
	Wrapper domain.Address
	Kind    domain.WrapperKind
	Total   *big.Int
}

// WrappedTotals sums the step values per wrapper token, in order of first
// appearance in the path. Native tokens are skipped.
func WrappedTotals(path *domain.Path, rows map[domain.Address]domain.TokenInfoRow) []WrappedTotal {
	index := make(map[domain.Address]int)
	var totals []WrappedTotal

	for _, step := range path.Steps {
		row, ok := rows[step.TokenOwner]
		if !ok {
			continue
		}
		kind, wrapped := row.WrapperKind()
		if !wrapped {
			continue
		}

		i, exists := index[step.TokenOwner]
		if !exists {
			i = len(totals)
			index[step.TokenOwner] = i
			totals = append(totals, WrappedTotal{
				Wrapper: step.TokenOwner,
				Kind:    kind,
				Total:   new(big.Int),
			})
		}
		totals[i].Total.Add(totals[i].Total, step.Value)
	}
	return totals
}

// UnwrapTarget describes one wrapper that must be unwrapped before the
// flow matrix can execute, and what unwrapping yields.
type UnwrapTarget struct {
	Wrapper domain.Address
	Avatar  domain.Address
	Kind    domain.WrapperKind

	// UnwrapAmount is the amount burned from the wrapper. For demurraged
	// wrappers it equals the wrapped total; for inflationary wrappers it
	// is the total expressed in static units.
	UnwrapAmount *big.Int

	// Available is the amount of native Circles the unwrap yields.
	Available *big.Int
}

// ExpectedUnwrapTargets computes unwrap amounts and yields for each
// wrapped total. Demurraged wrappers unwrap one-to-one; inflationary
// wrappers round-trip through static units, losing conversion dust.
func (c *Classifier) ExpectedUnwrapTargets(totals []WrappedTotal, rows map[domain.Address]domain.TokenInfoRow) []UnwrapTarget {
	targets := make([]UnwrapTarget, 0, len(totals))
	for _, wt := range totals {
		row, ok := rows[wt.Wrapper]
		if !ok {
			continue
		}

		target := UnwrapTarget{
			Wrapper: wt.Wrapper,
			Avatar:  row.Avatar(),
			Kind:    wt.Kind,
		}
		if wt.Kind == domain.WrapperDemurraged {
			target.UnwrapAmount = new(big.Int).Set(wt.Total)
			target.Available = new(big.Int).Set(wt.Total)
		} else {
			target.UnwrapAmount = c.DemurragedToStatic(wt.Total)
			target.Available = c.StaticToDemurraged(target.UnwrapAmount)
		}
		targets = append(targets, target)
	}
	return targets
}

package workflow

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rosterkit/roster-api/internal/fetch"
	"github.com/rosterkit/roster-api/internal/store"
	"golang.org/x/sync/errgroup"
)

// enrichRosterFile merges player profile details into every row of one
// roster file. Each changed row is persisted immediately so an
// interrupted run resumes where it left off.
func (o *Orchestrator) enrichRosterFile(ctx context.Context, path string, opts Options, rec Recorder) error {
	rows, fields, err := store.ReadRows(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", filepath.Base(path))
	}
	if len(rows) == 0 {
		rec.Log("    No rows found; skipping")
		return nil
	}
	if opts.Parallel && opts.MaxParallel > 1 {
		return o.enrichParallel(ctx, path, rows, fields, opts, rec)
	}
	return o.enrichSequential(ctx, path, rows, fields, opts, rec)
}

func (o *Orchestrator) enrichSequential(ctx context.Context, path string, rows []store.Row, fields []string, opts Options, rec Recorder) error {
	callOpts := callOptionsFor(opts)
	ordered := fields
	total := len(rows)

	for idx, row := range rows {
		playerID := determinePlayerID(row)
		if playerID == "" {
			continue
		}
		if !opts.Force && row["profile_id"] != "" {
			continue
		}

		rec.Logf("    Player %d/%d: fetching profile for %s", idx+1, total, playerID)
		profile, err := o.fetcher.PlayerProfile(ctx, playerID, callOpts...)
		if err != nil {
			o.reportFetchFailure(playerID, err, opts, rec)
			continue
		}

		var changed bool
		ordered, changed = mergeProfile(row, profile, ordered)
		if changed {
			if err := store.Persist(path, rows, ordered); err != nil {
				return errors.Wrap(err, "persist enriched rows")
			}
		}
		if idx+1 < total && opts.RateLimit && opts.Delay > 0 {
			o.sleep(opts.Delay)
		}
	}
	return store.Persist(path, rows, ordered)
}

// enrichParallel fetches profiles for the rows of one file with a
// bounded group. Merges and persists stay serialized behind a mutex;
// fetches and pacing sleeps run outside it.
func (o *Orchestrator) enrichParallel(ctx context.Context, path string, rows []store.Row, fields []string, opts Options, rec Recorder) error {
	callOpts := callOptionsFor(opts)
	total := len(rows)

	var mu sync.Mutex // guards rows, ordered and persists
	ordered := fields

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxParallel)

	for idx := range rows {
		idx := idx // per-iteration copy: go directive is below 1.22
		g.Go(func() error {
			row := rows[idx]
			playerID := determinePlayerID(row)
			if playerID == "" {
				return nil
			}
			if !opts.Force && row["profile_id"] != "" {
				return nil
			}

			rec.Logf("    Player %d/%d: fetching profile for %s", idx+1, total, playerID)
			profile, err := o.fetcher.PlayerProfile(gctx, playerID, callOpts...)
			if err != nil {
				o.reportFetchFailure(playerID, err, opts, rec)
				return nil
			}

			mu.Lock()
			var changed bool
			ordered, changed = mergeProfile(row, profile, ordered)
			if changed {
				err = store.Persist(path, rows, ordered)
			}
			mu.Unlock()
			if err != nil {
				return errors.Wrap(err, "persist enriched rows")
			}
			if opts.RateLimit && opts.Delay > 0 {
				o.sleep(opts.Delay)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return store.Persist(path, rows, ordered)
}

// reportFetchFailure logs one failed profile fetch and applies the
// rate-limit cooldown when the status suggests throttling.
func (o *Orchestrator) reportFetchFailure(playerID string, err error, opts Options, rec Recorder) {
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) {
		rec.Logf("      Failed to process player %s: %v", playerID, err)
		return
	}
	rec.Logf("      Failed to fetch player %s: %v", playerID, err)
	if fetch.IsRateLimited(err) {
		pause := o.cfg.Cooldown
		if opts.RateLimit && opts.Delay > pause {
			pause = opts.Delay
		}
		rec.Logf("      Rate limit suspected; sleeping %s before continuing", pause)
		o.sleep(pause)
	}
}

// mergeProfile folds the profile's fields into row under a profile_
// prefix, extending the column order append-only. It reports whether
// the row changed.
func mergeProfile(row store.Row, profile *fetch.Object, ordered []string) ([]string, bool) {
	keys := profile.Keys()
	flatKeys := make([]string, len(keys))
	for i, key := range keys {
		flatKeys[i] = "profile_" + key
	}
	ordered = store.MergeFields(ordered, flatKeys)

	changed := false
	for i, key := range keys {
		value, _ := profile.Get(key)
		serialised := store.SerializeValue(value)
		if row[flatKeys[i]] != serialised {
			row[flatKeys[i]] = serialised
			changed = true
		}
	}
	return ordered, changed
}

// determinePlayerID resolves the identifier used for the detail
// fetch. Rows without one cannot be enriched and are left untouched.
func determinePlayerID(row store.Row) string {
	for _, key := range []string{"id", "player_id", "playerId", "profile_id"} {
		if value := strings.TrimSpace(row[key]); value != "" {
			return value
		}
	}
	return ""
}

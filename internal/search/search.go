// Package search runs every command grammar against one utterance and
// resolves the overlapping matches into a non-overlapping result set.
package search

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"voxcmd/internal/commands"
	"voxcmd/internal/logger"
	"voxcmd/internal/matcher"
	"voxcmd/pkg/voxtypes"
)

// SearchResult is one command recognized in an utterance.
type SearchResult struct {
	Command  *commands.Command     `json:"-"`
	Match    *voxtypes.MatchResult `json:"match"`
	Priority int                   `json:"priority"`
}

// Name returns the name of the recognized command.
func (r *SearchResult) Name() string {
	return r.Command.Name()
}

// Searcher fans a search out over many commands. It is safe for concurrent
// use; every Search call gets its own parse memo.
type Searcher struct {
	matcher     *matcher.Matcher
	concurrency int
	log         *log.Logger
}

// New creates a searcher running at most concurrency matchers at a time.
// A non-positive concurrency uses the number of CPUs.
func New(m *matcher.Matcher, concurrency int) *Searcher {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Searcher{
		matcher:     m,
		concurrency: concurrency,
		log:         logger.NewStyledLogger("Search"),
	}
}

// Search matches utterance against cmds and returns the recognized commands
// ordered by position. A command's priority is its index in cmds; when two
// matches overlap the lower priority keeps its span where possible.
//
// Errors of individual commands are joined and returned together with the
// results of the others. A cancelled context returns no results.
func (s *Searcher) Search(ctx context.Context, utterance string, cmds []*commands.Command, entities []voxtypes.Entity) ([]*SearchResult, error) {
	id := uuid.NewString()
	logger.SearchOperation("start", utterance, "id", id, "commands", len(cmds), "entities", len(entities))

	st := matcher.NewState(entities)
	found := make([][]*SearchResult, len(cmds))

	var (
		mu   sync.Mutex
		errs []error
	)
	collect := func(cmd *commands.Command, err error) {
		s.log.Warn("Command failed", "command", cmd.Name(), "id", id, "error", err)
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, cmd := range cmds {
		i, cmd := i, cmd
		g.Go(func() error {
			matches, err := s.matcher.Match(gctx, cmd.Pattern(), utterance, st)
			if err != nil {
				if isContextErr(err) {
					return err
				}
				collect(cmd, err)
				return nil
			}
			for _, m := range matches {
				found[i] = append(found[i], &SearchResult{Command: cmd, Match: m, Priority: i})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []*SearchResult
	for _, rs := range found {
		results = append(results, rs...)
	}
	logger.SearchOperation("matched", utterance, "id", id, "results", len(results))

	results, err := s.resolve(ctx, utterance, results, st, collect)
	if err != nil {
		return nil, err
	}
	logger.SearchOperation("resolved", utterance, "id", id, "results", len(results))
	return results, errors.Join(errs...)
}

// resolve trims or drops overlapping results until none overlap. For an
// overlapping pair the lower priority is preferred: the other side is
// re-matched inside the part of its span the preferred side does not cover,
// then the preferred side is tried the same way, and if neither still
// matches the other side is dropped.
func (s *Searcher) resolve(ctx context.Context, text string, results []*SearchResult, st *matcher.State, collect func(*commands.Command, error)) ([]*SearchResult, error) {
	for {
		sortResults(results)

		i := firstOverlap(results)
		if i < 0 {
			return results, nil
		}
		a, b := results[i], results[i+1]
		preferred, other := a, b
		preferredAt, otherAt := i, i+1
		if b.Priority < a.Priority {
			preferred, other = b, a
			preferredAt, otherAt = i+1, i
		}

		trimmed, err := s.trim(ctx, other, preferred, text, st, collect)
		if err != nil {
			return nil, err
		}
		if trimmed != nil {
			s.log.Debug("Trimmed", "command", other.Name(), "span", trimmed.Match.Substring)
			results[otherAt] = trimmed
			continue
		}

		trimmed, err = s.trim(ctx, preferred, other, text, st, collect)
		if err != nil {
			return nil, err
		}
		if trimmed != nil {
			s.log.Debug("Trimmed", "command", preferred.Name(), "span", trimmed.Match.Substring)
			results[preferredAt] = trimmed
			continue
		}

		s.log.Debug("Dropped", "command", other.Name(), "span", other.Match.Substring, "kept", preferred.Name())
		results = append(results[:otherAt], results[otherAt+1:]...)
	}
}

// trim re-matches r inside the part of its span that does not overlap
// against. It returns nil when nothing matches there.
func (s *Searcher) trim(ctx context.Context, r, against *SearchResult, text string, st *matcher.State, collect func(*commands.Command, error)) (*SearchResult, error) {
	start, end := complement(r.Match, against.Match)
	if end <= start {
		return nil, nil
	}

	matches, err := s.matcher.Match(ctx, r.Command.Pattern(), text[start:end], st)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		collect(r.Command, err)
		return nil, nil
	}
	if len(matches) == 0 {
		return nil, nil
	}

	m := matches[0]
	m.Shift(start)
	return &SearchResult{Command: r.Command, Match: m, Priority: r.Priority}, nil
}

// complement returns the part of r's span outside against: the head when r
// starts first, the tail otherwise.
func complement(r, against *voxtypes.MatchResult) (int, int) {
	if r.Start < against.Start {
		return r.Start, against.Start
	}
	return against.End, r.End
}

func sortResults(results []*SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Match.Start != results[j].Match.Start {
			return results[i].Match.Start < results[j].Match.Start
		}
		return results[i].Priority < results[j].Priority
	})
}

func firstOverlap(results []*SearchResult) int {
	for i := 0; i+1 < len(results); i++ {
		if results[i].Match.Overlaps(results[i+1].Match) {
			return i
		}
	}
	return -1
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

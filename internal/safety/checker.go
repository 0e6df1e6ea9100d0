// Package safety rejects user text that links to harmful URLs.
package safety

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/xurls/v2"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
)

// URLReputation answers whether a single URL is safe to show to users.
type URLReputation interface {
	URLIsSafe(ctx context.Context, url string) (bool, error)
}

const maxParallelChecks = 8

type Checker struct {
	rep URLReputation
	log *zap.Logger
}

func NewChecker(rep URLReputation, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{rep: rep, log: log}
}

var relaxed = xurls.Relaxed()

// ExtractURLs returns the distinct URLs in text in order of first appearance.
func ExtractURLs(text string) []string {
	found := relaxed.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(found))
	urls := make([]string, 0, len(found))
	for _, u := range found {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// Check returns the first harmful URL in text, or "" if all are safe.
func (c *Checker) Check(ctx context.Context, text string) (string, error) {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return "", nil
	}

	verdicts := make([]bool, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChecks)
	for i, u := range urls {
		g.Go(func() error {
			safe, err := c.rep.URLIsSafe(gctx, u)
			if err != nil {
				return fmt.Errorf("check url %s: %w", u, err)
			}
			verdicts[i] = safe
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	for i, safe := range verdicts {
		if !safe {
			return urls[i], nil
		}
	}
	return "", nil
}

// Verify returns a field error on field when text contains a harmful URL.
func (c *Checker) Verify(ctx context.Context, field, text string) error {
	bad, err := c.Check(ctx, text)
	if err != nil {
		return err
	}
	if bad != "" {
		c.log.Info("rejected harmful url", zap.String("field", field), zap.String("url", bad))
		return apperr.Field(field, apperr.ErrValidation, "Url: %s is considered to be harmful. Please remove it from the %s", bad, field)
	}
	return nil
}

// StaticReputation is a fixed verdict table, handy for tests and local runs.
type StaticReputation struct {
	mu      sync.Mutex
	Harmful map[string]bool
	Calls   int
}

func (s *StaticReputation) URLIsSafe(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	return !s.Harmful[url], nil
}

package aperture

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ComputeAll evaluates req against every aperture with at most workers
// calls in flight; workers <= 0 means no limit. Results are in aperture
// order. The first failure cancels the remaining work.
func ComputeAll(ctx context.Context, apertures []*Aperture, req Request, workers int) ([]Result, error) {
	results := make([]Result, len(apertures))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, a := range apertures {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := a.Compute(ctx, req)
			if err != nil {
				return errors.Wrapf(err, "aperture %d", i)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

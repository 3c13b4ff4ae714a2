package numerical

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/orbprop/internal/dynamo"
	"github.com/san-kum/orbprop/internal/propagation"
)

// Segment is one interval to propagate again.
type Segment struct {
	Start, End time.Time
}

// Builder returns a fresh, fully configured propagator. It is called once
// per segment, possibly from several goroutines, so the propagators it
// returns must not share maneuvers or other stateful models.
type Builder func() (*Propagator, error)

// RecomputeSegments propagates every segment with its own propagator,
// starting from the state of ref at the segment start. Results are in
// segment order and do not depend on parallel.
func RecomputeSegments(ctx context.Context, build Builder, ref propagation.BoundedPropagator, segments []Segment, parallel bool) ([]propagation.SpacecraftState, error) {
	out := make([]propagation.SpacecraftState, len(segments))
	one := func(ctx context.Context, i int) error {
		seg := segments[i]
		s0, err := ref.Propagate(ctx, seg.Start)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		p, err := build()
		if err != nil {
			return fmt.Errorf("segment %d: build: %w", i, err)
		}
		if err := p.SetInitialState(s0); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if out[i], err = p.Propagate(ctx, seg.End); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		return nil
	}

	if parallel {
		if err := dynamo.RunParallel(ctx, len(segments), one); err != nil {
			return nil, err
		}
		return out, nil
	}
	for i := range segments {
		if err := one(ctx, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

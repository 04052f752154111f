package scene

import (
	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

// PolicyResult carries the emitted segments together with drop accounting,
// so callers can observe how much raw content the policy excluded.
type PolicyResult struct {
	Segments         []entity.Segment
	RawShots         int
	Emitted          int
	DroppedShort     int
	DroppedRemainder int
}

// ApplyPolicy turns raw shot boundaries into duration-bounded segments.
//
// Shots inside [min, max] pass through unchanged. Shots longer than max are
// split greedily into consecutive chunks of max seconds walking forward from
// the shot start; a trailing chunk shorter than min is discarded, not merged
// into the previous chunk. Shots shorter than min are dropped whole, and
// adjacent short shots are never coalesced.
//
// Sub-segment ids increment from the parent shot id so sub-splits remain
// traceable to their source shot. Sub-segment frame bounds are recomputed
// from time using targetFPS, the frame rate the video was prepared at.
func ApplyPolicy(rawShots []entity.ShotBoundary, policy entity.DurationPolicy, targetFPS int) PolicyResult {
	res := PolicyResult{
		Segments: make([]entity.Segment, 0, len(rawShots)),
		RawShots: len(rawShots),
	}

	for _, shot := range rawShots {
		d := shot.Duration()

		switch {
		case d < policy.MinDurationSec:
			res.DroppedShort++

		case d <= policy.MaxDurationSec:
			res.Segments = append(res.Segments, entity.Segment{
				ShotID:     shot.ShotID,
				StartFrame: shot.StartFrame,
				EndFrame:   shot.EndFrame,
				StartTime:  shot.StartTime,
				EndTime:    shot.EndTime,
			})

		default:
			subID := shot.ShotID
			current := shot.StartTime
			for current < shot.EndTime {
				end := current + policy.MaxDurationSec
				if end > shot.EndTime {
					end = shot.EndTime
				}
				if end-current >= policy.MinDurationSec {
					res.Segments = append(res.Segments, entity.Segment{
						ShotID:     subID,
						StartFrame: int(current * float64(targetFPS)),
						EndFrame:   int(end * float64(targetFPS)),
						StartTime:  current,
						EndTime:    end,
					})
					subID++
				} else {
					// Trailing remainder below the minimum is dropped, never
					// merged into the previous sub-segment.
					res.DroppedRemainder++
				}
				current = end
			}
		}
	}

	res.Emitted = len(res.Segments)
	return res
}

package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

func mustPolicy(t *testing.T, min, max float64) entity.DurationPolicy {
	t.Helper()
	p, err := entity.NewDurationPolicy(min, max)
	require.NoError(t, err)
	return p
}

func TestApplyPolicyPassThrough(t *testing.T) {
	policy := mustPolicy(t, 5, 12)
	shots := []entity.ShotBoundary{
		{ShotID: 0, StartTime: 0, EndTime: 8, StartFrame: 0, EndFrame: 8},
	}

	res := ApplyPolicy(shots, policy, 1)

	require.Len(t, res.Segments, 1)
	assert.Equal(t, 0, res.Segments[0].ShotID)
	assert.Equal(t, 0.0, res.Segments[0].StartTime)
	assert.Equal(t, 8.0, res.Segments[0].EndTime)
	// In-bounds shots keep their native frame indices.
	assert.Equal(t, 0, res.Segments[0].StartFrame)
	assert.Equal(t, 8, res.Segments[0].EndFrame)
	assert.Equal(t, 1, res.Emitted)
	assert.Equal(t, 0, res.DroppedShort)
}

func TestApplyPolicyDropsShortShot(t *testing.T) {
	policy := mustPolicy(t, 5, 12)
	shots := []entity.ShotBoundary{
		{ShotID: 0, StartTime: 0, EndTime: 2.5},
	}

	res := ApplyPolicy(shots, policy, 1)

	assert.Empty(t, res.Segments)
	assert.Equal(t, 1, res.DroppedShort)
	assert.Equal(t, 0, res.Emitted)
}

func TestApplyPolicyNeverMergesAdjacentShortShots(t *testing.T) {
	policy := mustPolicy(t, 5, 12)
	// Three consecutive 3s shots would total 9s, inside bounds if merged.
	shots := []entity.ShotBoundary{
		{ShotID: 0, StartTime: 0, EndTime: 3},
		{ShotID: 1, StartTime: 3, EndTime: 6},
		{ShotID: 2, StartTime: 6, EndTime: 9},
	}

	res := ApplyPolicy(shots, policy, 1)

	assert.Empty(t, res.Segments)
	assert.Equal(t, 3, res.DroppedShort)
}

func TestApplyPolicySplitsLongShotKeepingRemainder(t *testing.T) {
	policy := mustPolicy(t, 5, 12)
	// 30s shot: chunks [0,12), [12,24), trailing [24,30) is 6s >= min, kept.
	shots := []entity.ShotBoundary{
		{ShotID: 4, StartTime: 0, EndTime: 30},
	}

	res := ApplyPolicy(shots, policy, 2)

	require.Len(t, res.Segments, 3)
	assert.Equal(t, []entity.Segment{
		{ShotID: 4, StartTime: 0, EndTime: 12, StartFrame: 0, EndFrame: 24},
		{ShotID: 5, StartTime: 12, EndTime: 24, StartFrame: 24, EndFrame: 48},
		{ShotID: 6, StartTime: 24, EndTime: 30, StartFrame: 48, EndFrame: 60},
	}, res.Segments)
	assert.Equal(t, 0, res.DroppedRemainder)
}

func TestApplyPolicyDiscardsTrailingRemainderUnderMin(t *testing.T) {
	policy := mustPolicy(t, 5, 12)
	// 25s shot: [0,12), [12,24), trailing [24,25) is 1s < min, dropped.
	shots := []entity.ShotBoundary{
		{ShotID: 0, StartTime: 0, EndTime: 25},
	}

	res := ApplyPolicy(shots, policy, 1)

	require.Len(t, res.Segments, 2)
	assert.Equal(t, 12.0, res.Segments[0].EndTime)
	assert.Equal(t, 24.0, res.Segments[1].EndTime)
	assert.Equal(t, 1, res.DroppedRemainder)
}

func TestApplyPolicySplitOffsetStart(t *testing.T) {
	policy := mustPolicy(t, 5, 12)
	shots := []entity.ShotBoundary{
		{ShotID: 7, StartTime: 10, EndTime: 40},
	}

	res := ApplyPolicy(shots, policy, 1)

	require.Len(t, res.Segments, 3)
	assert.Equal(t, 10.0, res.Segments[0].StartTime)
	assert.Equal(t, 22.0, res.Segments[0].EndTime)
	assert.Equal(t, 34.0, res.Segments[1].EndTime)
	assert.Equal(t, 40.0, res.Segments[2].EndTime)
	assert.Equal(t, []int{7, 8, 9}, []int{res.Segments[0].ShotID, res.Segments[1].ShotID, res.Segments[2].ShotID})
}

func TestApplyPolicyBoundInvariant(t *testing.T) {
	policies := []entity.DurationPolicy{
		mustPolicy(t, 5, 12),
		mustPolicy(t, 1, 3),
		mustPolicy(t, 0.5, 30),
	}
	shots := []entity.ShotBoundary{
		{ShotID: 0, StartTime: 0, EndTime: 0.2},
		{ShotID: 1, StartTime: 0.2, EndTime: 4.7},
		{ShotID: 2, StartTime: 4.7, EndTime: 11.3},
		{ShotID: 3, StartTime: 11.3, EndTime: 64.9},
		{ShotID: 4, StartTime: 64.9, EndTime: 65.0},
	}

	for _, policy := range policies {
		res := ApplyPolicy(shots, policy, 1)
		prevEnd := -1.0
		for _, seg := range res.Segments {
			d := seg.Duration()
			assert.GreaterOrEqual(t, d, policy.MinDurationSec)
			assert.LessOrEqual(t, d, policy.MaxDurationSec)
			// Time-ordered and non-overlapping.
			assert.GreaterOrEqual(t, seg.StartTime, prevEnd)
			prevEnd = seg.EndTime
		}
		assert.Equal(t, len(res.Segments), res.Emitted)
		assert.Equal(t, len(shots), res.RawShots)
	}
}

func TestApplyPolicyEmptyInput(t *testing.T) {
	policy := mustPolicy(t, 5, 12)

	res := ApplyPolicy(nil, policy, 1)

	assert.Empty(t, res.Segments)
	assert.Zero(t, res.RawShots)
}

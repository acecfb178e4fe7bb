package detector

import (
	"context"
	"errors"
	"image"
	"slices"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProposer struct {
	regions []domain.Region
	err     error
	calls   int
}

func (f *fakeProposer) ProposeRegions(context.Context, image.Image) ([]domain.Region, error) {
	f.calls++
	return f.regions, f.err
}

var testImage = image.NewRGBA(image.Rect(0, 0, 100, 80))

func TestNewSelectsVariant(t *testing.T) {
	log := logger.NewNopLogger()

	assert.Equal(t, ModeWholeImage, New(Config{Enabled: false}, &fakeProposer{}, log).Mode())
	assert.Equal(t, ModeWholeImage, New(Config{Enabled: true}, nil, log).Mode())
	assert.Equal(t, ModeProposing, New(Config{Enabled: true}, &fakeProposer{}, log).Mode())
}

func TestWholeImageYieldsSingleRegion(t *testing.T) {
	regions := slices.Collect(WholeImage{}.Detect(context.Background(), testImage))

	require.Len(t, regions, 1)
	assert.Equal(t, domain.NewRegion(0, 0, 100, 80, 1.0), regions[0])
}

func TestProposingFiltersSortsAndCaps(t *testing.T) {
	proposer := &fakeProposer{regions: []domain.Region{
		domain.NewRegion(0, 0, 10, 10, 0.30),
		domain.NewRegion(10, 10, 10, 10, 0.10),
		domain.NewRegion(20, 20, 10, 10, 0.90),
		domain.NewRegion(30, 30, 10, 10, 0.60),
		domain.NewRegion(500, 500, 10, 10, 0.99),
	}}
	d := NewProposing(proposer, Config{Enabled: true, ConfidenceThreshold: 0.25, MaxRegions: 2}, logger.NewNopLogger())

	regions := slices.Collect(d.Detect(context.Background(), testImage))

	require.Len(t, regions, 2)
	assert.InDelta(t, 0.90, regions[0].Confidence, 1e-6)
	assert.InDelta(t, 0.60, regions[1].Confidence, 1e-6)
}

func TestProposingStableForEqualConfidence(t *testing.T) {
	proposer := &fakeProposer{regions: []domain.Region{
		domain.NewRegion(0, 0, 10, 10, 0.5),
		domain.NewRegion(10, 0, 10, 10, 0.5),
		domain.NewRegion(20, 0, 10, 10, 0.5),
	}}
	d := NewProposing(proposer, Config{Enabled: true, MaxRegions: 5}, logger.NewNopLogger())

	regions := slices.Collect(d.Detect(context.Background(), testImage))

	require.Len(t, regions, 3)
	assert.Equal(t, []int{0, 10, 20}, []int{regions[0].X, regions[1].X, regions[2].X})
}

func TestProposingNothingDetected(t *testing.T) {
	proposer := &fakeProposer{regions: []domain.Region{domain.NewRegion(0, 0, 10, 10, 0.1)}}
	cfg := Config{Enabled: true, ConfidenceThreshold: 0.25, MaxRegions: 5}

	regions := slices.Collect(NewProposing(proposer, cfg, logger.NewNopLogger()).Detect(context.Background(), testImage))
	assert.Empty(t, regions)

	cfg.FallbackOnEmpty = true
	regions = slices.Collect(NewProposing(proposer, cfg, logger.NewNopLogger()).Detect(context.Background(), testImage))
	require.Len(t, regions, 1)
	assert.Equal(t, float32(1.0), regions[0].Confidence)
}

func TestProposingFallsBackWhenModelUnavailable(t *testing.T) {
	proposer := &fakeProposer{err: e.Wrap("MLService.Detect", e.ErrModelUnavailable)}
	d := NewProposing(proposer, Config{Enabled: true, MaxRegions: 5}, logger.NewNopLogger())

	regions := slices.Collect(d.Detect(context.Background(), testImage))

	require.Len(t, regions, 1)
	assert.Equal(t, domain.WholeImageRegion(testImage.Bounds()), regions[0])
}

func TestProposingCancelledYieldsNothing(t *testing.T) {
	proposer := &fakeProposer{err: context.Canceled}
	d := NewProposing(proposer, Config{Enabled: true, MaxRegions: 5}, logger.NewNopLogger())

	regions := slices.Collect(d.Detect(context.Background(), testImage))
	assert.Empty(t, regions)
}

func TestDetectIsLazy(t *testing.T) {
	proposer := &fakeProposer{err: errors.New("unused")}
	d := NewProposing(proposer, Config{Enabled: true}, logger.NewNopLogger())

	_ = d.Detect(context.Background(), testImage)
	assert.Zero(t, proposer.calls)
}

func TestTake(t *testing.T) {
	proposer := &fakeProposer{regions: []domain.Region{
		domain.NewRegion(0, 0, 10, 10, 0.9),
		domain.NewRegion(0, 0, 10, 10, 0.8),
		domain.NewRegion(0, 0, 10, 10, 0.7),
	}}
	d := NewProposing(proposer, Config{Enabled: true}, logger.NewNopLogger())

	assert.Len(t, Take(d.Detect(context.Background(), testImage), 2), 2)
	assert.Empty(t, Take(d.Detect(context.Background(), testImage), 0))
}

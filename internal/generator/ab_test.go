package generator

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"plandraft/internal/drafting"
	"plandraft/internal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewRationale = "• Entry-level ladder for price-sensitive households.\n• Family tier anchors retention."

func TestGenerateAB_OneCleanOneDegraded(t *testing.T) {
	var drafts, reviews atomic.Int32
	backend := drafting.Func(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "reviewing a streaming subscription plan proposal"):
			reviews.Add(1)
			// each review sees both framings
			assert.Contains(t, prompt, "Variant A is affordability-led: "+DefaultVariants[0].Focus)
			assert.Contains(t, prompt, "Variant B is premium-led: "+DefaultVariants[1].Focus)
			assert.Contains(t, prompt, "how its framing differs")
			return reviewRationale, nil
		case strings.Contains(prompt, "Focus for variant A"):
			drafts.Add(1)
			return fenced(holidayYAML), nil
		default:
			drafts.Add(1)
			return fenced(basicWithDevices("2")), nil
		}
	})
	g := newTestGenerator(t, backend)

	ab, err := g.GenerateAB(context.Background(), holidayBrief, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, ab.Proposals, 2)

	a, b := ab.Proposals[0], ab.Proposals[1]
	assert.Equal(t, "A", a.Label)
	assert.Equal(t, "B", b.Label)
	assert.True(t, a.Result.Accepted())
	assert.Empty(t, a.Result.Warnings)
	assert.False(t, b.Result.Accepted())
	assert.NotEmpty(t, b.Result.Warnings)
	require.NotNil(t, b.Result.Document)

	assert.Equal(t, "A", a.Result.Document.Metadata["variant_label"])
	assert.Equal(t, DefaultVariants[1].Focus, b.Result.Document.Metadata["variant_focus"])

	assert.Equal(t, reviewRationale, a.Rationale)
	assert.Equal(t, reviewRationale, b.Rationale)
	assert.Equal(t, int32(1+3), drafts.Load())
	assert.Equal(t, int32(2), reviews.Load())
}

func TestGenerateAB_VariantsDoNotShareMetadata(t *testing.T) {
	g := newTestGenerator(t, drafting.NewStaticBackend(""))
	opts := DefaultOptions()
	opts.Metadata = map[string]any{"campaign": "spring"}

	ab, err := g.GenerateAB(context.Background(), holidayBrief, opts)
	require.NoError(t, err)
	require.Len(t, ab.Proposals, 2)
	for i, p := range ab.Proposals {
		assert.Equal(t, DefaultVariants[i].Label, p.Result.Document.Metadata["variant_label"])
		assert.Equal(t, "spring", p.Result.Document.Metadata["campaign"])
	}
	_, leaked := opts.Metadata["variant_label"]
	assert.False(t, leaked)
}

func TestGenerateAB_FallbackRationaleWhenReviewLooksLikeYAML(t *testing.T) {
	g := newTestGenerator(t, drafting.NewStaticBackend(""))

	ab, err := g.GenerateAB(context.Background(), holidayBrief, DefaultOptions())
	require.NoError(t, err)
	for _, p := range ab.Proposals {
		assert.True(t, p.Result.Accepted())
		assert.Contains(t, p.Rationale, "Pricing spectrum spans 9.00 to 9.00 USD.")
	}
	assert.True(t, strings.HasPrefix(ab.Proposals[0].Rationale,
		"• Variant A is affordability-led, versus variant B's premium-led framing.\n"))
	assert.True(t, strings.HasPrefix(ab.Proposals[1].Rationale,
		"• Variant B is premium-led, versus variant A's affordability-led framing.\n"))
}

func TestGenerateAB_RationaleFailureDoesNotFailPair(t *testing.T) {
	backend := drafting.Func(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "reviewing a streaming subscription plan proposal") {
			return "", &drafting.BackendError{Kind: drafting.KindUnavailable, Detail: "rate limited"}
		}
		return fenced(holidayYAML), nil
	})
	g := newTestGenerator(t, backend)

	ab, err := g.GenerateAB(context.Background(), holidayBrief, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, ab.Proposals, 2)
	assert.Contains(t, ab.Proposals[0].Rationale, "Basic, Standard, Family")
	assert.Contains(t, ab.Proposals[0].Rationale, "7.99 to 19.99 USD")
	assert.Contains(t, ab.Proposals[0].Rationale, "Variant A is affordability-led")
	assert.Contains(t, ab.Proposals[1].Rationale, "Variant B is premium-led")
}

func TestGenerateAB_BothUnparseable(t *testing.T) {
	backend := drafting.Func(func(ctx context.Context, prompt string) (string, error) {
		return "no yaml today", nil
	})
	g := newTestGenerator(t, backend)

	ab, err := g.GenerateAB(context.Background(), holidayBrief, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, ab.Proposals, 2)
	for i, p := range ab.Proposals {
		assert.Nil(t, p.Result.Document)
		assert.NotEmpty(t, p.Result.Warnings)
		assert.Equal(t, FallbackRationale(DefaultVariants[i], DefaultVariants[1-i], nil), p.Rationale)
		assert.Contains(t, p.Rationale, DefaultVariants[i].Framing)
	}
}

func TestGenerateAB_BackendErrorFailsPair(t *testing.T) {
	backend := drafting.Func(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Focus for variant B") {
			return "", &drafting.BackendError{Kind: drafting.KindUnavailable, Detail: "down"}
		}
		return fenced(holidayYAML), nil
	})
	g := newTestGenerator(t, backend)

	ab, err := g.GenerateAB(context.Background(), holidayBrief, DefaultOptions())
	assert.Nil(t, ab)
	assert.True(t, drafting.IsKind(err, drafting.KindUnavailable))
	assert.Contains(t, err.Error(), "variant B")
}

func TestGenerateAB_Disabled(t *testing.T) {
	g := newTestGenerator(t, drafting.NewStaticBackend(""))
	opts := DefaultOptions()
	opts.EnableAB = false

	_, err := g.GenerateAB(context.Background(), holidayBrief, opts)
	assert.ErrorIs(t, err, ErrABDisabled)
}

func TestFallbackRationale(t *testing.T) {
	a, b := DefaultVariants[0], DefaultVariants[1]
	assert.Contains(t, FallbackRationale(a, b, nil), "No valid plan document")
	assert.Contains(t, FallbackRationale(a, b, &plan.PlanDocument{}), "No valid plan document")
	assert.True(t, strings.HasPrefix(FallbackRationale(b, a, nil), "• Variant B is premium-led"))

	doc, err := plan.ParseDraft(holidayYAML)
	require.NoError(t, err)
	assert.Equal(t,
		"• Variant A is affordability-led, versus variant B's premium-led framing.\n"+
			"• Mix of tiers (Basic, Standard, Family) from affordable to premium to cover audience breadth.\n"+
			"• Pricing spectrum spans 7.99 to 19.99 USD.",
		FallbackRationale(a, b, doc))
}

func TestPlausibleRationale(t *testing.T) {
	assert.True(t, plausibleRationale(reviewRationale))
	assert.False(t, plausibleRationale(""))
	assert.False(t, plausibleRationale("```yaml\nplans: []\n```"))
	assert.False(t, plausibleRationale(strings.Repeat("x", maxRationaleLen+1)))
}

package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleCheckerBlockedPrefix(t *testing.T) {
	t.Parallel()
	c := NewRuleChecker(FraudConfig{BlockedPrefixes: []string{"+99899"}})

	a, err := c.Check(context.Background(), "+998991234567", "anonymous")
	require.NoError(t, err)
	assert.Equal(t, 100, a.RiskScore)
	assert.Equal(t, Block, a.Recommendation)
	assert.Equal(t, []string{"blocked prefix +99899"}, a.Reasons)
}

func TestRuleCheckerUzbekMobileAllowed(t *testing.T) {
	t.Parallel()
	c := NewRuleChecker(DefaultFraudConfig())

	a, err := c.Check(context.Background(), "+998901234567", "anonymous")
	require.NoError(t, err)
	assert.Equal(t, 0, a.RiskScore)
	assert.Equal(t, Allow, a.Recommendation)
	assert.Empty(t, a.Reasons)
}

func TestRuleCheckerUnparseableBlocked(t *testing.T) {
	t.Parallel()
	c := NewRuleChecker(DefaultFraudConfig())

	a, err := c.Check(context.Background(), "12345", "anonymous")
	require.NoError(t, err)
	assert.Equal(t, 80, a.RiskScore)
	assert.Equal(t, Block, a.Recommendation)
}

func TestRuleCheckerThresholds(t *testing.T) {
	t.Parallel()
	c := NewRuleChecker(FraudConfig{BlockThreshold: 90, VerifyThreshold: 30})
	assert.Equal(t, Allow, c.recommend(29))
	assert.Equal(t, Verify, c.recommend(30))
	assert.Equal(t, Verify, c.recommend(89))
	assert.Equal(t, Block, c.recommend(90))
}

func TestLongestRun(t *testing.T) {
	t.Parallel()
	cases := map[string]int{
		"":              0,
		"+998901234567": 2,
		"+998900000000": 8,
		"+77777777777":  11,
		"11-11":         2,
	}
	for in, want := range cases {
		assert.Equal(t, want, longestRun(in), in)
	}
}

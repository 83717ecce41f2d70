package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSeverityAdjustsPriority(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, 7, p.Resolve(CategoryWeather, SeverityHigh).Priority)
	assert.Equal(t, 4, p.Resolve(CategoryWeather, SeverityLow).Priority)
	assert.Equal(t, 10, p.Resolve(CategorySeismic, SeverityCritical).Priority)
	assert.Equal(t, 5, p.Resolve(CategoryLocal, "").Priority)
}

func TestMergeOverrides(t *testing.T) {
	zero := 0
	p := DefaultPolicies().Merge(CategoryFlood, &zero, SoundNone, 17)
	got := p.Resolve(CategoryFlood, SeverityLow)
	assert.Equal(t, 0, got.Priority)
	assert.Equal(t, SoundNone, got.Sound)
	assert.Equal(t, 17, got.ThreadID)
	// The receiver is unchanged.
	assert.Equal(t, SoundSiren, DefaultPolicies().Resolve(CategoryFlood, "").Sound)
}

func TestChannelsCoverEveryCategory(t *testing.T) {
	ch := DefaultPolicies().Channels()
	require.Len(t, ch, len(Categories))
	for i, c := range ch {
		assert.Equal(t, Categories[i], c.Category)
		assert.NotEmpty(t, c.Name)
	}
}

func TestParseCategoryAliases(t *testing.T) {
	for in, want := range map[string]Category{
		"quake": CategorySeismic, "Earthquake": CategorySeismic, "agency": CategoryNDMA,
		"weather": CategoryWeather, "reminder": CategoryLocal, " flood ": CategoryFlood,
	} {
		got, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCategory("volcano")
	assert.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("")
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, sev)
	sev, err = ParseSeverity("SEVERE")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)
}

func TestResolveTrigger(t *testing.T) {
	s := &Service{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{}.withDefaults()

	at, err := s.resolveTrigger("t", Trigger{}, now, cfg)
	require.NoError(t, err)
	assert.Equal(t, now, at)

	at, err = s.resolveTrigger("t", Trigger{After: time.Minute}, now, cfg)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), at)

	at, err = s.resolveTrigger("t", Trigger{At: now.Add(-time.Second)}, now, cfg)
	require.NoError(t, err, "within grace")
	assert.Equal(t, now, at)

	_, err = s.resolveTrigger("t", Trigger{At: now.Add(-time.Minute)}, now, cfg)
	assert.ErrorIs(t, err, ErrScheduling)

	_, err = s.resolveTrigger("t", Trigger{Repeat: "daily:07:30"}, now, cfg)
	assert.NoError(t, err)
}

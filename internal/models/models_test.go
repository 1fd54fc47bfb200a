package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModels(t *testing.T) {
	t.Run("Link TableName", func(t *testing.T) {
		assert.Equal(t, "links", Link{}.TableName())
		assert.Equal(t, "clicks", ClickRecord{}.TableName())
		assert.Equal(t, "geo_rules", GeoRule{}.TableName())
	})
}

func TestLink_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	link := Link{}
	assert.False(t, link.IsExpired(now))

	link.ExpiresAt = &future
	assert.False(t, link.IsExpired(now))

	link.ExpiresAt = &past
	assert.True(t, link.IsExpired(now))
}

func TestLink_LimitReached(t *testing.T) {
	limit := int64(10)

	link := Link{ClickCount: 100}
	assert.False(t, link.LimitReached())

	link = Link{ClickLimit: &limit, ClickCount: 9}
	assert.False(t, link.LimitReached())

	link.ClickCount = 10
	assert.True(t, link.LimitReached())
}

func TestExperiment_IsLive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("Inactive", func(t *testing.T) {
		exp := Experiment{IsActive: false}
		assert.False(t, exp.IsLive(now))
	})

	t.Run("No Window", func(t *testing.T) {
		exp := Experiment{IsActive: true}
		assert.True(t, exp.IsLive(now))
	})

	t.Run("Before Start", func(t *testing.T) {
		exp := Experiment{IsActive: true, StartAt: &future}
		assert.False(t, exp.IsLive(now))
	})

	t.Run("After End", func(t *testing.T) {
		exp := Experiment{IsActive: true, EndAt: &past}
		assert.False(t, exp.IsLive(now))
	})

	t.Run("Inside Window", func(t *testing.T) {
		exp := Experiment{IsActive: true, StartAt: &past, EndAt: &future}
		assert.True(t, exp.IsLive(now))
	})
}

func TestGeoRule_Values(t *testing.T) {
	rule := GeoRule{MatchValues: "us, de ,FR,,"}
	assert.Equal(t, []string{"US", "DE", "FR"}, rule.Values())
}

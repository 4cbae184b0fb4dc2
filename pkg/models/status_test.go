package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportance_String(t *testing.T) {
	tests := []struct {
		importance Importance
		want       string
	}{
		{ImportanceUnset, "unset"},
		{ImportanceLow, "low"},
		{ImportanceMedium, "medium"},
		{ImportanceHigh, "high"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.importance.String())
	}
}

func TestImportance_IsValid(t *testing.T) {
	tests := []struct {
		importance Importance
		want       bool
	}{
		{ImportanceLow, true},
		{ImportanceMedium, true},
		{ImportanceHigh, true},
		{ImportanceUnset, false},
		{Importance("critical"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.importance.IsValid(), "Importance(%q).IsValid()", string(tt.importance))
	}
}

func TestPosition_Rank(t *testing.T) {
	assert.Less(t, PositionTop.Rank(), PositionMiddle.Rank())
	assert.Less(t, PositionMiddle.Rank(), PositionBottom.Rank())
	assert.Less(t, PositionBottom.Rank(), Position("sideways").Rank())
	assert.True(t, PositionMiddle.IsValid())
	assert.False(t, Position("").IsValid())
	assert.Equal(t, "unset", Position("").String())
}

func TestHashKind(t *testing.T) {
	assert.True(t, HashKindAverage.IsPerceptual())
	assert.False(t, HashKindContent.IsPerceptual())
	assert.False(t, HashKindNone.IsPerceptual())
	assert.Equal(t, "none", HashKindNone.String())
}

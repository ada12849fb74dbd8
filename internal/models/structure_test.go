package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeStructureRecomputeTotals(t *testing.T) {
	s := &FeeStructure{
		FeeItems: FeeItems{
			{TemplateID: "t1", Amount: dec("1000"), IsCompulsory: true},
			{TemplateID: "t2", Amount: dec("300")},
			{TemplateID: "t3", Amount: dec("200"), IsCompulsory: true},
		},
		ScholarshipItems: ScholarshipItems{
			{TemplateID: "s1", Amount: dec("150"), IsAutoApplied: true},
			{TemplateID: "s2", Amount: dec("500")},
		},
	}
	s.RecomputeTotals()

	assert.True(t, s.FeeTotals.Compulsory.Equal(dec("1200")))
	assert.True(t, s.FeeTotals.Optional.Equal(dec("300")))
	assert.True(t, s.FeeTotals.Total.Equal(dec("1500")))
	assert.True(t, s.ScholTotals.AutoApplied.Equal(dec("150")))
	assert.True(t, s.ScholTotals.Manual.Equal(dec("500")))
	assert.True(t, s.ScholTotals.Total.Equal(dec("650")))
}

func TestFeeStructureSortItems(t *testing.T) {
	s := &FeeStructure{
		FeeItems: FeeItems{
			{TemplateID: "b", TemplateName: "Books", Order: 3},
			{TemplateID: "a", TemplateName: "Admission", Order: 1},
			{TemplateID: "c", TemplateName: "Computer", Order: 1},
		},
	}
	s.SortItems()
	assert.Equal(t, "a", s.FeeItems[0].TemplateID)
	assert.Equal(t, "c", s.FeeItems[1].TemplateID)
	assert.Equal(t, "b", s.FeeItems[2].TemplateID)
}

func TestFeeItemByTemplate(t *testing.T) {
	s := &FeeStructure{FeeItems: FeeItems{{TemplateID: "t1", Amount: decimal.NewFromInt(10)}}}
	item, ok := s.FeeItemByTemplate("t1")
	assert.True(t, ok)
	assert.True(t, item.Amount.Equal(decimal.NewFromInt(10)))
	_, ok = s.FeeItemByTemplate("missing")
	assert.False(t, ok)
}

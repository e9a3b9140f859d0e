package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

func TestCleanDOI_StripsScraperSuffixes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain doi untouched", "10.1016/j.jpowsour.2020.228123", "10.1016/j.jpowsour.2020.228123"},
		{"abstract suffix", "10.1002/adma.201900161abstract", "10.1002/adma.201900161"},
		{"full suffix", "10.1021/acsami.9b15544full", "10.1021/acsami.9b15544"},
		{"pdf suffix", "10.1016/j.ensm.2019.12.005pdf", "10.1016/j.ensm.2019.12.005"},
		{"epdf suffix", "10.1002/aenm.201903242epdf", "10.1002/aenm.201903242"},
		{"html suffix", "10.1039/C9TA09338Ahtml", "10.1039/C9TA09338A"},
		{"uppercase suffix", "10.1002/adma.201900161ABSTRACT", "10.1002/adma.201900161"},
		{"surrounding whitespace", "  10.1016/j.jpowsour.2020.228123  ", "10.1016/j.jpowsour.2020.228123"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.CleanDOI(tt.in))
		})
	}
}

func TestCleanDOI_OnlyOneSuffixStripped(t *testing.T) {
	// A single pass strips one artifact; stacked artifacts are not peeled
	// recursively because real scraper output never stacks them.
	got := domain.CleanDOI("10.1000/xyzpdfpdf")
	assert.Equal(t, "10.1000/xyzpdf", got)
}

func TestExtractDOI(t *testing.T) {
	t.Run("lowercase key", func(t *testing.T) {
		md := map[string]string{"doi": "10.1016/j.jpowsour.2020.228123"}
		assert.Equal(t, "10.1016/j.jpowsour.2020.228123", domain.ExtractDOI(md))
	})

	t.Run("uppercase key", func(t *testing.T) {
		md := map[string]string{"DOI": "10.1002/adma.201900161"}
		assert.Equal(t, "10.1002/adma.201900161", domain.ExtractDOI(md))
	})

	t.Run("lowercase wins over uppercase", func(t *testing.T) {
		md := map[string]string{"doi": "10.1/lower", "DOI": "10.1/upper"}
		assert.Equal(t, "10.1/lower", domain.ExtractDOI(md))
	})

	t.Run("value is cleaned", func(t *testing.T) {
		md := map[string]string{"doi": "10.1002/adma.201900161abstract"}
		assert.Equal(t, "10.1002/adma.201900161", domain.ExtractDOI(md))
	})

	t.Run("blank value ignored", func(t *testing.T) {
		md := map[string]string{"doi": "  ", "DOI": "10.1/kept"}
		assert.Equal(t, "10.1/kept", domain.ExtractDOI(md))
	})

	t.Run("nil metadata", func(t *testing.T) {
		assert.Equal(t, "", domain.ExtractDOI(nil))
	})

	t.Run("no doi key", func(t *testing.T) {
		assert.Equal(t, "", domain.ExtractDOI(map[string]string{"title": "x"}))
	})
}

package domain

import "strings"

// doiSuffixes are junk fragments that PDF scrapers commonly glue onto a DOI.
var doiSuffixes = []string{"abstract", "full", "pdf", "epdf", "html"}

// CleanDOI strips trailing scraper artifacts from a DOI so that the same
// document keys identically across the passage- and sentence-level stores.
func CleanDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return doi
	}
	lower := strings.ToLower(doi)
	for _, suffix := range doiSuffixes {
		if strings.HasSuffix(lower, suffix) {
			doi = strings.TrimSpace(doi[:len(doi)-len(suffix)])
			break
		}
	}
	return doi
}

// ExtractDOI returns the document identifier carried in passage metadata.
// Both lowercase "doi" and uppercase "DOI" keys are accepted; the sentence
// store historically used the uppercase form. Returns "" when no identifier
// is present.
func ExtractDOI(metadata map[string]string) string {
	if metadata == nil {
		return ""
	}
	for _, key := range []string{"doi", "DOI"} {
		if v, ok := metadata[key]; ok && strings.TrimSpace(v) != "" {
			return CleanDOI(v)
		}
	}
	return ""
}

package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// minPrefilterRunes is the shortest blob that can pass on keywords alone.
const minPrefilterRunes = 100

// placePatterns match capitalised names next to a venue word or a
// recommending verb. Any match admits the document outright.
var placePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+ (?:Cafe|Coffee|Restaurant|Bar|Bistro|Shop|Hotel|Museum)\b`),
	regexp.MustCompile(`\bcalled [A-Z][a-z]+`),
	regexp.MustCompile(`\btry [A-Z][a-z]+`),
	regexp.MustCompile(`\bvisit [A-Z][a-z]+`),
	regexp.MustCompile(`\brecommend [A-Z][a-z]+`),
}

var placeKeywords = []string{
	"cafe", "coffee", "restaurant", "bar", "food", "place", "spot", "gem", "local",
}

// Admit is the cheap local check run before any model call. It admits
// documents whose body or top comments look like they name places.
func Admit(doc *domain.Document) bool {
	blob := prefilterBlob(doc)

	for _, re := range placePatterns {
		if re.MatchString(blob) {
			return true
		}
	}

	if utf8.RuneCountInString(blob) < minPrefilterRunes {
		return false
	}

	lower := strings.ToLower(blob)
	for _, kw := range placeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func prefilterBlob(doc *domain.Document) string {
	top := doc.TopComments(domain.FilterCommentLimit)
	if len(top) == 0 {
		return doc.Body
	}
	bodies := make([]string, len(top))
	for i, c := range top {
		bodies[i] = c.Body
	}
	return doc.Body + " " + strings.Join(bodies, " ")
}

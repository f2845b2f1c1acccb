package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

type mergeFeature struct {
	catalog *Catalog
}

func (f *mergeFeature) anEmptyCatalog() error {
	f.catalog = NewCatalog()
	return nil
}

func (f *mergeFeature) iMergeADraft(name, city, category, tags, confidence, vibe string) error {
	f.catalog.Merge(domain.PlaceDraft{
		Name:       name,
		City:       city,
		Country:    "Testland",
		Category:   domain.Category(category),
		Tags:       splitList(tags),
		Vibe:       vibe,
		Confidence: domain.Confidence(confidence),
		Sources:    []domain.SourceRef{{URL: "https://www.reddit.com/r/test/comments/1/"}},
	})
	return nil
}

func (f *mergeFeature) theCatalogHasPlaces(n int) error {
	if got := f.catalog.Len(); got != n {
		return fmt.Errorf("expected %d places, got %d", n, got)
	}
	return nil
}

func (f *mergeFeature) place(key string) (*domain.CanonicalPlace, error) {
	for _, p := range f.catalog.Places() {
		if p.Key() == key {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no place keyed %q", key)
}

func (f *mergeFeature) placeHasCategory(key, category string) error {
	p, err := f.place(key)
	if err != nil {
		return err
	}
	if string(p.Category) != category {
		return fmt.Errorf("expected category %s, got %s", category, p.Category)
	}
	return nil
}

func (f *mergeFeature) placeHasTags(key, tags string) error {
	p, err := f.place(key)
	if err != nil {
		return err
	}
	if got := strings.Join(p.Tags, ","); got != tags {
		return fmt.Errorf("expected tags %s, got %s", tags, got)
	}
	return nil
}

func (f *mergeFeature) placeHasMentions(key string, n int) error {
	p, err := f.place(key)
	if err != nil {
		return err
	}
	if p.MentionCount != n {
		return fmt.Errorf("expected %d mentions, got %d", n, p.MentionCount)
	}
	return nil
}

func (f *mergeFeature) placeHasConfidence(key, confidence string) error {
	p, err := f.place(key)
	if err != nil {
		return err
	}
	if string(p.Confidence) != confidence {
		return fmt.Errorf("expected confidence %s, got %s", confidence, p.Confidence)
	}
	return nil
}

func (f *mergeFeature) placeHasVibe(key, vibe string) error {
	p, err := f.place(key)
	if err != nil {
		return err
	}
	if p.Vibe != vibe {
		return fmt.Errorf("expected vibe %q, got %q", vibe, p.Vibe)
	}
	return nil
}

func (f *mergeFeature) placeHasSources(key string, n int) error {
	p, err := f.place(key)
	if err != nil {
		return err
	}
	if len(p.Sources) != n {
		return fmt.Errorf("expected %d sources, got %d", n, len(p.Sources))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func initializeMergeScenario(sc *godog.ScenarioContext) {
	f := &mergeFeature{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		f.catalog = nil
		return ctx, nil
	})

	sc.Step(`^an empty catalog$`, f.anEmptyCatalog)
	sc.Step(`^I merge a draft named "([^"]*)" in "([^"]*)" with category "([^"]*)", tags "([^"]*)", confidence "([^"]*)" and vibe "([^"]*)"$`, f.iMergeADraft)
	sc.Step(`^the catalog has (\d+) places?$`, f.theCatalogHasPlaces)
	sc.Step(`^the place keyed "([^"]*)" has category "([^"]*)"$`, f.placeHasCategory)
	sc.Step(`^the place keyed "([^"]*)" has tags "([^"]*)"$`, f.placeHasTags)
	sc.Step(`^the place keyed "([^"]*)" has (\d+) mentions?$`, f.placeHasMentions)
	sc.Step(`^the place keyed "([^"]*)" has confidence "([^"]*)"$`, f.placeHasConfidence)
	sc.Step(`^the place keyed "([^"]*)" has vibe "([^"]*)"$`, f.placeHasVibe)
	sc.Step(`^the place keyed "([^"]*)" has (\d+) sources?$`, f.placeHasSources)
}

func TestMergeFeature(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "merge",
		ScenarioInitializer: initializeMergeScenario,
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run merge feature tests")
	}
}

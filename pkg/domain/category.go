package domain

import (
	dErrors "flagledger/pkg/domain-errors"
)

// Category labels the dimension a flag speaks to. The catalog is extensible at
// runtime, so ParseCategory only enforces the label shape; membership is
// checked against the CategoryCatalog by the flag engine.
type Category string

// Seeded categories. The first five double as the named dimensions of the
// rating snapshot.
const (
	CategoryBehavior      Category = "behavior"
	CategorySafety        Category = "safety"
	CategoryCommunication Category = "communication"
	CategoryKindness      Category = "kindness"
	CategoryReliability   Category = "reliability"
	CategoryGeneral       Category = "general"
)

// SeedCategories returns the default catalog contents in seeding order.
func SeedCategories() []Category {
	return []Category{
		CategoryBehavior,
		CategorySafety,
		CategoryCommunication,
		CategoryKindness,
		CategoryReliability,
		CategoryGeneral,
	}
}

const maxCategoryLen = 32

// ParseCategory validates the label shape of external input: non-empty,
// bounded, lowercase ascii letters and underscores only.
//
// Errors: CodeInvalidCategory on any violation.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidCategory, "category cannot be empty")
	}
	if len(s) > maxCategoryLen {
		return "", dErrors.New(dErrors.CodeInvalidCategory, "category label too long")
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '_' {
			return "", dErrors.New(dErrors.CodeInvalidCategory, "category must be lowercase letters and underscores")
		}
	}
	return Category(s), nil
}

func (c Category) String() string { return string(c) }

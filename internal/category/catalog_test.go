package category

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
)

type CatalogSuite struct {
	suite.Suite
	catalog *Catalog
	ctx     context.Context
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupTest() {
	s.catalog = NewCatalog()
	s.ctx = context.Background()
}

func (s *CatalogSuite) TestSeedCategories() {
	s.Run("default set present", func() {
		for _, cat := range []id.Category{"behavior", "safety", "communication", "kindness", "reliability", "general"} {
			s.True(s.catalog.IsValid(s.ctx, cat), "expected %q in catalog", cat)
		}
	})

	s.Run("unknown category invalid", func() {
		s.False(s.catalog.IsValid(s.ctx, "invalid_category"))
	})

	s.Run("list preserves seed order", func() {
		s.Equal(id.SeedCategories(), s.catalog.List(s.ctx))
	})
}

func (s *CatalogSuite) TestAdd() {
	s.Run("new category becomes valid", func() {
		cat, err := s.catalog.Add(s.ctx, "punctuality")
		s.Require().NoError(err)
		s.Equal(id.Category("punctuality"), cat)
		s.True(s.catalog.IsValid(s.ctx, cat))
	})

	s.Run("appended in insertion order", func() {
		list := s.catalog.List(s.ctx)
		s.Equal(id.Category("punctuality"), list[len(list)-1])
	})

	s.Run("duplicate rejected", func() {
		_, err := s.catalog.Add(s.ctx, "behavior")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateCategory))
	})

	s.Run("malformed label rejected", func() {
		for _, raw := range []string{"", "Has Upper", "with space", "dash-ed", "ünïcode"} {
			_, err := s.catalog.Add(s.ctx, raw)
			s.Require().Error(err, "label %q", raw)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidCategory))
		}
	})
}

func (s *CatalogSuite) TestConcurrentAdd() {
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = s.catalog.Add(s.ctx, fmt.Sprintf("cat_%c", 'a'+n%26))
		}(i)
	}
	wg.Wait()

	// 26 distinct labels plus the 6 seeds; duplicates must be rejected.
	s.Equal(32, s.catalog.Count(s.ctx))
}

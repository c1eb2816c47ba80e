package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/loyalty-miniapp/internal/models"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Products(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockSource) Categories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

var (
	home        = &models.Category{GUID: "c1", Name: "Для дома", Slug: "home"}
	electronics = &models.Category{GUID: "c2", Name: "Электроника"}
)

func testProducts() []models.Product {
	return []models.Product{
		{GUID: "p1", Name: "Кофемашина", Price: 1200, IsAvailable: true, Category: home},
		{GUID: "p2", Name: "Наушники", Price: 800, IsAvailable: true, Category: electronics},
		{GUID: "p3", Name: "Термокружка", Price: 300, IsAvailable: false, Category: home},
		{GUID: "p4", Name: "Подарочная карта", Price: 500, IsAvailable: true},
	}
}

func loadedCatalog(t *testing.T) *Catalog {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(testProducts(), nil)
	src.On("Categories", mock.Anything).Return([]models.Category{*home, *electronics}, nil)

	c := New(src)
	require.NoError(t, c.EnsureLoaded(context.Background()))
	return c
}

func TestCatalog_EnsureLoadedOnlyOnce(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(testProducts(), nil).Once()
	src.On("Categories", mock.Anything).Return([]models.Category{*home}, nil).Once()

	c := New(src)
	require.NoError(t, c.EnsureLoaded(context.Background()))
	require.NoError(t, c.EnsureLoaded(context.Background()))

	assert.Len(t, c.Products(), 4)
	assert.Len(t, c.Categories(), 1)
	src.AssertExpectations(t)
}

func TestCatalog_EnsureLoadedPartialFailure(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(nil, errors.New("boom")).Once()
	src.On("Categories", mock.Anything).Return([]models.Category{*home}, nil).Once()

	c := New(src)
	err := c.EnsureLoaded(context.Background())

	assert.ErrorContains(t, err, "load products")
	assert.Empty(t, c.Products())
	assert.Len(t, c.Categories(), 1, "categories load even when products fail")

	src.On("Products", mock.Anything).Return(testProducts(), nil).Once()
	require.NoError(t, c.EnsureLoaded(context.Background()))
	assert.Len(t, c.Products(), 4)
	src.AssertExpectations(t)
}

func TestCatalog_Reload(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(testProducts(), nil).Twice()
	src.On("Categories", mock.Anything).Return([]models.Category{*home}, nil).Twice()

	c := New(src)
	require.NoError(t, c.EnsureLoaded(context.Background()))
	require.NoError(t, c.Reload(context.Background()))
	src.AssertExpectations(t)
}

func TestCatalog_Filter(t *testing.T) {
	c := loadedCatalog(t)

	tests := []struct {
		name     string
		category string
		term     string
		want     []string
	}{
		{name: "everything", want: []string{"p1", "p2", "p3", "p4"}},
		{name: "all keyword", category: AllCategories, want: []string{"p1", "p2", "p3", "p4"}},
		{name: "by slug", category: "home", want: []string{"p1", "p3"}},
		{name: "by lower-cased name", category: "электроника", want: []string{"p2"}},
		{name: "by name any case", category: "Для дома", want: []string{"p1", "p3"}},
		{name: "term is case-insensitive", term: "КОФЕ", want: []string{"p1"}},
		{name: "category and term", category: "home", term: "кружка", want: []string{"p3"}},
		{name: "no match", category: "unknown", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]string, 0)
			for _, p := range c.Filter(tt.category, tt.term) {
				got = append(got, p.GUID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_Find(t *testing.T) {
	c := loadedCatalog(t)

	p, ok := c.Find("p2")
	require.True(t, ok)
	assert.Equal(t, "Наушники", p.Name)

	_, ok = c.Find("missing")
	assert.False(t, ok)
}

func TestCatalog_ProductsReturnsCopy(t *testing.T) {
	c := loadedCatalog(t)

	products := c.Products()
	products[0].Name = "changed"

	p, _ := c.Find("p1")
	assert.Equal(t, "Кофемашина", p.Name)
}

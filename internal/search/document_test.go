package search

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
)

func TestNewDocument(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	item := domain.Item{
		ID:          42,
		Name:        "Standing Desk",
		Description: strPtr("Electric height adjustable desk"),
		Category:    strPtr("  Home   Office "),
		PriceCents:  49990,
		Stock:       3,
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	doc := NewDocument(item)

	assert.Equal(t, "42", doc.ID)
	assert.Equal(t, "standing desk", doc.NameSort)
	require.NotNil(t, doc.CategoryTerms)
	assert.Equal(t, "home office", *doc.CategoryTerms)
	assert.Equal(t, 499.90, doc.Price)
	assert.True(t, doc.Available)
	require.NotNil(t, doc.CreatedAt)
	assert.Equal(t, "2025-06-01T10:30:00Z", *doc.CreatedAt)
}

func TestNewDocument_NilCategory(t *testing.T) {
	doc := NewDocument(domain.Item{ID: 1, Name: "Lamp"})

	assert.Nil(t, doc.CategoryTerms)
	assert.Nil(t, doc.CreatedAt)
	assert.Equal(t, []string{"Lamp", "lamp"}, doc.NameSuggest.Input)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"category_terms":null`)
}

func TestNewDocument_SuggestionInputs(t *testing.T) {
	doc := NewDocument(domain.Item{Name: "Red  Lamp", Category: strPtr("Lighting"), Stock: 1})
	assert.Equal(t, []string{"Red  Lamp", "Lighting", "red", "lamp"}, doc.NameSuggest.Input)

	doc = NewDocument(domain.Item{Name: "lamp", Category: strPtr(" lamp ")})
	assert.Equal(t, []string{"lamp"}, doc.NameSuggest.Input)
}

func TestNewDocument_SuggestionWeight(t *testing.T) {
	assert.Equal(t, 10, NewDocument(domain.Item{Name: "a", Stock: 5}).NameSuggest.Weight)
	assert.Equal(t, 3, NewDocument(domain.Item{Name: "a", Stock: 0}).NameSuggest.Weight)
}

func TestNewDocument_Deterministic(t *testing.T) {
	item := domain.Item{ID: 9, Name: "Oak Chair", Category: strPtr("Furniture"), PriceCents: 12000, Stock: 2}

	a, err := json.Marshal(NewDocument(item))
	require.NoError(t, err)
	b, err := json.Marshal(NewDocument(item))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestDocument_RoundTrip(t *testing.T) {
	for _, stock := range []int{0, 1, 25} {
		item := domain.Item{ID: 5, Name: "Desk Mat", Category: strPtr("Office"), PriceCents: 1999, Stock: stock}

		doc := NewDocument(item)
		back, err := doc.Item()
		require.NoError(t, err)

		assert.Equal(t, item.Name, back.Name)
		assert.Equal(t, item.Category, back.Category)
		assert.Equal(t, item.PriceCents, back.PriceCents)
		assert.Equal(t, item.Stock, back.Stock)
		assert.Equal(t, stock > 0, doc.Available, "stock=%d", stock)
	}
}

func TestDocument_ItemRejectsBadID(t *testing.T) {
	_, err := Document{ID: "abc"}.Item()
	assert.Error(t, err)
}

func TestDocument_ItemRejectsBadTimestamps(t *testing.T) {
	bad := "01/02/2025"

	_, err := Document{ID: "4", CreatedAt: &bad}.Item()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")

	_, err = Document{ID: "4", UpdatedAt: &bad}.Item()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updated_at")
}

func TestDocument_ItemParsesTimestamps(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := NewDocument(domain.Item{ID: 4, Name: "Desk", CreatedAt: at, UpdatedAt: at.Add(time.Hour)})

	item, err := doc.Item()
	require.NoError(t, err)
	assert.True(t, at.Equal(item.CreatedAt))
	assert.True(t, at.Add(time.Hour).Equal(item.UpdatedAt))
}

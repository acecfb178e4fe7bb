package converter

import (
	"testing"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductToModelStoresMissingPriceAsNull(t *testing.T) {
	categoryID := int64(7)
	model := ProductToModel(&usecase.ProductInfo{
		ID:        "P000123",
		Title:     "Кроссовки",
		SalePrice: decimal.RequireFromString("4990.00"),
	}, &categoryID)

	assert.True(t, model.SalePrice.Valid)
	assert.True(t, model.SalePrice.Decimal.Equal(decimal.NewFromInt(4990)))
	assert.False(t, model.OriginalPrice.Valid)
	assert.Equal(t, &categoryID, model.CategoryID)
}

func TestOutboxEventKeepsTypeAndStatus(t *testing.T) {
	event := usecase.NewOutboxEvent(usecase.IndexPublished, "build-1", []byte{1, 2})

	model := OutboxEventToModel(event)
	assert.Equal(t, "index.published", model.EventType)
	assert.Equal(t, "pending", model.Status)

	back := OutboxEventsToEntities([]*OutboxEventModel{model})
	assert.Equal(t, []*usecase.OutboxEvent{event}, back)
}

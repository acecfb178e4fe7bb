package converter

import (
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/shopspring/decimal"
)

func ToRedisModel(entity *usecase.ProductInfo) *ProductInfoRedisModel {
	return &ProductInfoRedisModel{
		ID:            entity.ID,
		Title:         entity.Title,
		Category:      entity.Category,
		Brand:         entity.Brand,
		SalePrice:     priceString(entity.SalePrice),
		OriginalPrice: priceString(entity.OriginalPrice),
		Currency:      entity.Currency,
		ImageKey:      entity.ImageKey,
		ProductURL:    entity.ProductURL,
	}
}

// ToUseCase возвращает ошибку, если цена в кэше повреждена.
func ToUseCase(model *ProductInfoRedisModel) (*usecase.ProductInfo, error) {
	sale, err := parsePrice(model.SalePrice)
	if err != nil {
		return nil, err
	}
	original, err := parsePrice(model.OriginalPrice)
	if err != nil {
		return nil, err
	}

	return &usecase.ProductInfo{
		ID:            model.ID,
		Title:         model.Title,
		Category:      model.Category,
		Brand:         model.Brand,
		SalePrice:     sale,
		OriginalPrice: original,
		Currency:      model.Currency,
		ImageKey:      model.ImageKey,
		ProductURL:    model.ProductURL,
	}, nil
}

func ToArrRedisModel(entities []usecase.ProductInfo) []ProductInfoRedisModel {
	out := make([]ProductInfoRedisModel, 0, len(entities))
	for i := range entities {
		out = append(out, *ToRedisModel(&entities[i]))
	}
	return out
}

func priceString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

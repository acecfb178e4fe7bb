package domain

// Product описывает товар каталога на момент снимка: стабильный идентификатор
// и ключи исходных изображений в объектном хранилище.
type Product struct {
	ID        string   // например, P000123
	ImageKeys []string // ключи объектов, минимум один
}

func NewProduct(id string, imageKeys []string) *Product {
	return &Product{
		ID:        id,
		ImageKeys: imageKeys,
	}
}

package converter

// ProductInfoRedisModel — метаданные товара в кэше. Цены хранятся строкой,
// чтобы не терять точность.
type ProductInfoRedisModel struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Category      string `json:"category,omitempty"`
	Brand         string `json:"brand,omitempty"`
	SalePrice     string `json:"sale_price,omitempty"`
	OriginalPrice string `json:"original_price,omitempty"`
	Currency      string `json:"currency,omitempty"`
	ImageKey      string `json:"image_key,omitempty"`
	ProductURL    string `json:"product_url,omitempty"`
}

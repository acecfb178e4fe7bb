package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/shopspring/decimal"
)

const metaFile = "meta.json"

// ObjectRepository — операции с бакетом, нужные каталогу и артефактам.
type ObjectRepository interface {
	Get(ctx context.Context, key string) (*domain.Image, error)
	List(ctx context.Context, prefix string) ([]string, error)
	FPut(ctx context.Context, key, path, contentType string) error
	FGet(ctx context.Context, key, path string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

var imageName = regexp.MustCompile(`(?i)^image_(\d+)\.(jpe?g|png|webp)$`)

// CatalogInfrastructure читает снимок каталога из бакета:
// <prefix><product_id>/image_N.jpg и <prefix><product_id>/meta.json.
type CatalogInfrastructure struct {
	repo       ObjectRepository
	prefix     string
	presignTTL time.Duration
	logger     logger.Logger
}

func NewCatalogInfrastructure(repo ObjectRepository, minioCfg *cfg.MinIOCfg, prefix string, logger logger.Logger) *CatalogInfrastructure {
	return &CatalogInfrastructure{
		repo:       repo,
		prefix:     prefix,
		presignTTL: minioCfg.PresignTTL,
		logger:     logger,
	}
}

type catalogImage struct {
	n   int
	key string
}

// ListProducts возвращает товары по возрастанию идентификатора, изображения
// каждого товара — по номеру. Товары без изображений пропускаются.
func (c *CatalogInfrastructure) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "CatalogInfrastructure.ListProducts"

	keys, err := c.repo.List(ctx, c.prefix)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	images := make(map[string][]catalogImage)
	for _, key := range keys {
		productID, name, ok := strings.Cut(strings.TrimPrefix(key, c.prefix), "/")
		if !ok || productID == "" {
			continue
		}

		if _, seen := images[productID]; !seen {
			images[productID] = nil
		}

		m := imageName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		images[productID] = append(images[productID], catalogImage{n: n, key: key})
	}

	products := make([]domain.Product, 0, len(images))
	for productID, imgs := range images {
		if len(imgs) == 0 {
			c.logger.Warnf("product %s has no images, skipped", productID)
			continue
		}

		slices.SortFunc(imgs, func(a, b catalogImage) int { return a.n - b.n })
		imageKeys := make([]string, 0, len(imgs))
		for _, img := range imgs {
			imageKeys = append(imageKeys, img.key)
		}
		products = append(products, *domain.NewProduct(productID, imageKeys))
	}

	slices.SortFunc(products, func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) })

	return products, nil
}

func (c *CatalogInfrastructure) GetImage(ctx context.Context, key string) (*domain.Image, error) {
	img, err := c.repo.Get(ctx, key)
	if err != nil {
		return nil, e.Wrap("CatalogInfrastructure.GetImage", err)
	}

	if img.ContentType == "" || img.ContentType == "application/octet-stream" {
		if ct, err := infrastructure.GetMIMEFromKey(key); err == nil {
			img.ContentType = ct
		}
	}

	return img, nil
}

// GetProductMeta разбирает meta.json товара.
func (c *CatalogInfrastructure) GetProductMeta(ctx context.Context, productID string) (*usecase.ProductInfo, error) {
	const op = "CatalogInfrastructure.GetProductMeta"

	obj, err := c.repo.Get(ctx, c.productPrefix(productID)+metaFile)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	info, err := parseMeta(obj.Data, productID, c.productPrefix(productID))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return info, nil
}

func (c *CatalogInfrastructure) PresignedURL(ctx context.Context, key string) (string, error) {
	return c.repo.Presign(ctx, key, c.presignTTL)
}

func (c *CatalogInfrastructure) productPrefix(productID string) string {
	return c.prefix + productID + "/"
}

type productMeta struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Category  json.RawMessage `json:"category"`
	Pricing   struct {
		Sale     json.RawMessage `json:"sale"`
		Original json.RawMessage `json:"original"`
		Currency string          `json:"currency"`
	} `json:"pricing"`
	Images []struct {
		ImageID string `json:"image_id"`
		Path    string `json:"path"`
	} `json:"images"`
	Source struct {
		ProductPage string `json:"product_page"`
		Brand       string `json:"brand"`
	} `json:"source"`
	SourceURL string `json:"source_url"`
	URL       string `json:"url"`
}

func parseMeta(data []byte, productID, productPrefix string) (*usecase.ProductInfo, error) {
	var meta productMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("meta.json of %s: %w", productID, err)
	}

	info := &usecase.ProductInfo{
		ID:       productID,
		Title:    strings.TrimSpace(meta.Title),
		Category: parseCategory(meta.Category),
		Brand:    meta.Source.Brand,
		Currency: meta.Pricing.Currency,
	}

	info.SalePrice = parsePrice(meta.Pricing.Sale)
	info.OriginalPrice = parsePrice(meta.Pricing.Original)

	for _, link := range []string{meta.Source.ProductPage, meta.SourceURL, meta.URL} {
		if link != "" {
			info.ProductURL = link
			break
		}
	}

	if len(meta.Images) > 0 && meta.Images[0].Path != "" {
		p := meta.Images[0].Path
		if !strings.Contains(p, "/") {
			p = productPrefix + p
		}
		info.ImageKey = p
	}

	return info, nil
}

// parseCategory понимает и {"id": .., "label": ..}, и просто строку.
func parseCategory(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return label
	}

	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Label
	}

	return ""
}

// parsePrice понимает числа и строки вида "4 990 ₽" или "4990,50".
// Нераспознанная цена — ноль.
func parsePrice(raw json.RawMessage) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero
	}

	s := string(raw)
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		s = str
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

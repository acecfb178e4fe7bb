package infrastructure

import (
	"path"
	"strings"

	"github.com/DRSN-tech/visual-search/pkg/e"
)

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, webp. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// GetMIMEFromKey — обратное преобразование по расширению ключа объекта.
func GetMIMEFromKey(key string) (string, error) {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	case ".webp":
		return "image/webp", nil
	case ".json":
		return "application/json", nil
	default:
		return "application/octet-stream", e.ErrUnsupportedMediaType
	}
}

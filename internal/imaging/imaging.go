// Package imaging декодирует, обрезает и масштабирует изображения
// перед детекцией и векторизацией.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Decode декодирует jpeg/png/gif/webp. Возвращает изображение и имя формата.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", e.ErrNoImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", e.ErrImageDecode, err)
	}

	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: empty bounds", e.ErrImageDecode)
	}

	return img, format, nil
}

// ClampRegion приводит регион к границам изображения, оставляя хотя бы 1px по каждой оси.
// Регион, не пересекающийся с изображением, — ошибка e.ErrImageDecode.
func ClampRegion(bounds image.Rectangle, r domain.Region) (image.Rectangle, error) {
	rect := r.Rect().Canon().Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: region %v outside image %v", e.ErrImageDecode, r.Rect(), bounds)
	}

	return rect, nil
}

// Crop вырезает регион. Пиксели копируются, исходное изображение не удерживается.
func Crop(img image.Image, r domain.Region) (image.Image, error) {
	rect, err := ClampRegion(img.Bounds(), r)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)

	return dst, nil
}

// Resize уменьшает изображение так, чтобы большая сторона не превышала maxSide.
// Меньшие изображения возвращаются как есть.
func Resize(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	scale := float64(maxSide) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	return dst
}

// EncodeJPEG кодирует изображение для передачи в ML-сервис.
func EncodeJPEG(img image.Image) ([]byte, error) {
	const quality = 90

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

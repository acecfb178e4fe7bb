package domain

import "image"

// Region — прямоугольник на исходном изображении с уверенностью детектора.
// Регион не хранится отдельно от полученного из него эмбеддинга.
type Region struct {
	X, Y          int
	Width, Height int
	Confidence    float32
	Label         string // класс детектора, если известен
}

func NewRegion(x, y, width, height int, confidence float32) Region {
	return Region{
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
		Confidence: confidence,
	}
}

// WholeImageRegion — регион на всё изображение с уверенностью 1.0.
func WholeImageRegion(bounds image.Rectangle) Region {
	return Region{
		X:          bounds.Min.X,
		Y:          bounds.Min.Y,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Confidence: 1.0,
	}
}

// Rect переводит регион в image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

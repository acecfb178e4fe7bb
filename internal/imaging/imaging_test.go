package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	img, format, err := Decode(encodePNG(t, solid(4, 3, color.White)))
	require.NoError(t, err)

	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, e.ErrImageDecode)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, e.ErrNoImage)
}

func TestCropClampsToBounds(t *testing.T) {
	img := solid(10, 10, color.RGBA{R: 255, A: 255})

	out, err := Crop(img, domain.NewRegion(5, 5, 20, 20, 0.9))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 5), out.Bounds())

	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestCropOutsideImage(t *testing.T) {
	img := solid(10, 10, color.White)

	_, err := Crop(img, domain.NewRegion(50, 50, 5, 5, 0.9))
	assert.ErrorIs(t, err, e.ErrImageDecode)

	_, err = Crop(img, domain.NewRegion(2, 2, 0, 0, 0.9))
	assert.ErrorIs(t, err, e.ErrImageDecode)
}

func TestResize(t *testing.T) {
	img := solid(400, 200, color.White)

	out := Resize(img, 100)
	assert.Equal(t, image.Rect(0, 0, 100, 50), out.Bounds())

	same := Resize(img, 1000)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestEncodeJPEGRoundTrip(t *testing.T) {
	data, err := EncodeJPEG(solid(8, 8, color.Black))
	require.NoError(t, err)

	_, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

package domain

// Image описывает объект изображения в S3-совместимом хранилище.
type Image struct {
	ObjectKey   string
	Bucket      string
	Data        []byte
	Size        int64
	ContentType string // например, "image/jpeg"
}

func NewImage(bucket string, objectKey string, data []byte, contentType string) *Image {
	return &Image{
		ObjectKey:   objectKey,
		Bucket:      bucket,
		Data:        data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}

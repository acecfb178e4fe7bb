package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo реализует доступ к объектам бакета: изображениям каталога,
// meta.json товаров и артефактам индекса.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Get читает объект целиком. Отсутствующий объект — e.ErrObjectNotFound.
func (i *ImageRepo) Get(ctx context.Context, key string) (*domain.Image, error) {
	obj, err := i.mc.GetObject(ctx, i.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), mapNotFound(err))
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), mapNotFound(err))
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), mapNotFound(err))
	}

	return domain.NewImage(i.cfg.BucketName, key, data, info.ContentType), nil
}

// List возвращает ключи всех объектов под префиксом.
func (i *ImageRepo) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range i.mc.ListObjects(ctx, i.cfg.BucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), obj.Err)
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}

// FPut загружает локальный файл в объект key.
func (i *ImageRepo) FPut(ctx context.Context, key, path, contentType string) error {
	if _, err := i.mc.FPutObject(ctx, i.cfg.BucketName, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// FGet скачивает объект в локальный файл.
func (i *ImageRepo) FGet(ctx context.Context, key, path string) error {
	if err := i.mc.FGetObject(ctx, i.cfg.BucketName, key, path, minio.GetObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), mapNotFound(err))
	}

	return nil
}

// Presign возвращает временную ссылку на чтение объекта.
func (i *ImageRepo) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := i.mc.PresignedGetObject(ctx, i.cfg.BucketName, key, ttl, url.Values{})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return u.String(), nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func mapNotFound(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.Join(e.ErrObjectNotFound, err)
	}
	return err
}

package minio

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/index"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	cleanupAttempts = 3
	cleanupBase     = time.Second
	cleanupMax      = 8 * time.Second
	uploadLimit     = 4
)

// ArtifactsInfrastructure публикует сборки индекса в бакет под
// <artifacts_prefix>/<build_id>/ и скачивает их на реплики.
type ArtifactsInfrastructure struct {
	repo        ObjectRepository
	prefix      string
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
}

func NewArtifactsInfrastructure(repo ObjectRepository, minioCfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *ArtifactsInfrastructure {
	return &ArtifactsInfrastructure{
		repo:        repo,
		prefix:      minioCfg.ArtifactsPrefix,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

// Publish загружает файлы сборки параллельно с ограничением одновременных операций,
// manifest.json — последним: его наличие означает, что сборка выгружена целиком.
// При ошибке отменяет остальные загрузки и в фоне удаляет уже загруженные объекты.
func (a *ArtifactsInfrastructure) Publish(ctx context.Context, dir string, manifest index.Manifest) (string, error) {
	const op = "ArtifactsInfrastructure.Publish"

	prefix := path.Join(a.prefix, manifest.BuildID)
	files := manifest.Files()
	data, last := files[:len(files)-1], files[len(files)-1]

	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyCh := make(chan string, len(data))
	errCh := make(chan error, len(data))
	sem := make(chan struct{}, uploadLimit)

	var uploadWg sync.WaitGroup
	for _, name := range data {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			key := path.Join(prefix, name)
			if err := a.upload(ctx, key, filepath.Join(dir, name)); err != nil {
				errCh <- fmt.Errorf("upload %s failed: %w", name, err)
				return
			}
			keyCh <- key
		}()
	}

	go func() {
		uploadWg.Wait()
		close(errCh)
		close(keyCh)
	}()

	keys := make([]string, 0, len(files))
	ok := false
	defer func() {
		if !ok {
			a.CleanupObjects(keys)
		}
	}()

	for completed := 0; completed < len(data); {
		select {
		case key, open := <-keyCh:
			if open {
				keys = append(keys, key)
				completed++
			}
		case err, open := <-errCh:
			if open {
				cancel()
				return "", e.Wrap(op, err)
			}
		case <-ctx.Done():
			return "", e.Wrap(op, ctx.Err())
		}
	}

	manifestKey := path.Join(prefix, last)
	if err := a.upload(ctx, manifestKey, filepath.Join(dir, last)); err != nil {
		return "", e.Wrap(op, err)
	}

	ok = true
	a.logger.Infof("index %s published to %s", manifest.BuildID, prefix)

	return prefix, nil
}

func (a *ArtifactsInfrastructure) upload(ctx context.Context, key, file string) error {
	contentType, err := infrastructure.GetMIMEFromKey(key)
	if err != nil {
		contentType = "application/octet-stream"
	}
	return a.repo.FPut(ctx, key, file, contentType)
}

// Download скачивает файлы сборки в dstDir. Файлы пишутся во временные
// и переименовываются; при ошибке каталог удаляется.
func (a *ArtifactsInfrastructure) Download(ctx context.Context, prefix string, files []string, dstDir string) (err error) {
	const op = "ArtifactsInfrastructure.Download"

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dstDir); rmErr != nil {
				a.logger.Warnf("failed to remove partial download %s: %v", dstDir, rmErr)
			}
		}
	}()

	for _, name := range files {
		dst := filepath.Join(dstDir, name)
		tmp := dst + ".part"

		if err := a.repo.FGet(ctx, path.Join(prefix, name), tmp); err != nil {
			return e.Wrap(op, err)
		}
		if err := os.Rename(tmp, dst); err != nil {
			return e.Wrap(op, err)
		}
	}

	return nil
}

// CleanupObjects запускает фоновую очистку указанных ключей
func (a *ArtifactsInfrastructure) CleanupObjects(keys []string) {
	if len(keys) == 0 {
		return
	}
	a.wg.Add(1)
	go a.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет объекты с экспоненциальной задержкой и jitter.
func (a *ArtifactsInfrastructure) cleanupUploadedKeys(keys []string) {
	defer a.wg.Done()
	const op = "ArtifactsInfrastructure.cleanupUploadedKeys"
	a.logger.Infof("%s: cleaning up %d uploaded objects", op, len(keys))

	ctx, cancel := context.WithTimeout(a.shutdownCtx, 30*time.Second)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := a.repo.Delete(ctx, key)
			if err == nil {
				break
			}

			if attempt == cleanupAttempts-1 {
				a.logger.Warnf("cleanup gave up on %s: %v", key, err)
				break
			}

			delay := jitter.ExponentialBackoff(cleanupBase, cleanupMax, attempt, jitter.DefaultJitter)
			if err := jitter.Sleep(ctx, delay); err != nil {
				a.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (a *ArtifactsInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

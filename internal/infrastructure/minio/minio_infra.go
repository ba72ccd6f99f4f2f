package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/infrastructure"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/jitter"
	"github.com/genai-ecommerce/go-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// лимит на размер одного скачиваемого изображения
const maxImageBytes = 10 << 20

// MinioInfrastructure зеркалирует изображения продуктов из внешнего фида в MinIO
// и управляет фоновой очисткой осиротевших объектов.
type MinioInfrastructure struct {
	imageRepo   usecase.ImageRepository
	httpClient  *retryablehttp.Client
	cfg         *cfg.MinIOCfg
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
}

func NewMinioInfrastructure(imageRepo usecase.ImageRepository, httpClient *retryablehttp.Client,
	cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		imageRepo:   imageRepo,
		httpClient:  httpClient,
		cfg:         cfg,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

// MirrorImages скачивает изображения продукта по URL из фида и загружает их в MinIO
// параллельно с ограничением одновременных операций. Результат выровнен по порядку
// изображений запроса; для изображения, которое не удалось отзеркалировать, в слайсе
// остаётся пустой ключ. Ошибка одного изображения не отменяет остальные.
func (m *MinioInfrastructure) MirrorImages(ctx context.Context, req *usecase.MirrorImagesReq) (*usecase.MirrorImagesRes, error) {
	const op = "MinioInfrastructure.MirrorImages"

	keys := make([]string, len(req.Images))
	sem := make(chan struct{}, m.cfg.MirrorImagesLimit)

	var mirrorWg sync.WaitGroup
	for pos, image := range req.Images {
		mirrorWg.Add(1)
		go func() {
			defer mirrorWg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			key, err := m.mirrorOne(ctx, req.ProductID, pos, image.URL)
			if err != nil {
				m.logger.Warnf("%s: product_id=%d url=%s: %v", op, req.ProductID, image.URL, err)
				return
			}
			keys[pos] = key
		}()
	}

	done := make(chan struct{})
	go func() {
		mirrorWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, e.Wrap(op, ctx.Err())
	}

	return usecase.NewMirrorImagesRes(keys), nil
}

// mirrorOne скачивает одно изображение и кладёт его в бакет.
// Ключ объекта детерминирован по продукту и позиции, суффикс уникален.
func (m *MinioInfrastructure) mirrorOne(ctx context.Context, productID int64, position int, url string) (string, error) {
	data, contentType, err := m.download(ctx, url)
	if err != nil {
		return "", err
	}

	ext, err := infrastructure.GetExtensionFromMIME(contentType)
	if err != nil {
		return "", fmt.Errorf("mime %s: %w", contentType, err)
	}

	objKey := fmt.Sprintf("products/%d/%d-%s.%s", productID, position, uuid.NewString(), ext)

	key, err := m.imageRepo.Upload(ctx, objKey, data, contentType)
	if err != nil {
		return "", err
	}

	return key, nil
}

func (m *MinioInfrastructure) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done() // сигнализируем завершение компенсации
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: Cleaning up uploaded keys", op)

	ctx, cancel := context.WithTimeout(m.shutdownCtx, 30*time.Second)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < 3; attempt++ {
			if err := m.imageRepo.Delete(ctx, key); err == nil {
				break // Успешно удалено
			}

			select {
			case <-ctx.Done():
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			default:
			}

			if attempt < 2 {
				sleepTime := jitter.ExponentialBackoff(time.Second, 10*time.Second, attempt, jitter.DefaultJitter)

				select {
				case <-time.After(sleepTime):
				case <-ctx.Done():
					m.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
					return
				}
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

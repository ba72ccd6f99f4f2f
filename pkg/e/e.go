package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки рекомендательного ядра
	ErrProductNotFound     = fmt.Errorf("product not found")
	ErrEmptyCatalog        = fmt.Errorf("catalog is empty")
	ErrEmbeddingGeneration = fmt.Errorf("embedding generation failed")
	ErrVectorSizeMismatch  = fmt.Errorf("vector size mismatch")
	ErrEmptyVector         = fmt.Errorf("vector is empty")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")

	// 400 Bad Request
	ErrStatusBadRequest = fmt.Errorf("bad request")
	ErrInvalidProductID = fmt.Errorf("invalid product id")
	ErrInvalidTopK      = fmt.Errorf("k must be positive")
	ErrInvalidPage      = fmt.Errorf("invalid pagination parameters")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Ошибки инжеста каталога
	ErrIngestionInProgress  = fmt.Errorf("ingestion is already in progress")
	ErrFeedUnavailable      = fmt.Errorf("product feed is unavailable")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

package e

import "fmt"

var (
	// Ошибки входных данных (InputError): отдаются клиенту сразу, без повторов
	ErrInvalidArgument      = fmt.Errorf("invalid argument")
	ErrImageDecode          = fmt.Errorf("image cannot be decoded")
	ErrNoImage              = fmt.Errorf("no image provided")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")

	// Ошибки моделей: фатальны на старте, в рантайме — service unavailable
	ErrModelUnavailable = fmt.Errorf("model unavailable")

	// Ошибки индекса
	ErrEmptyCatalog         = fmt.Errorf("empty catalog: nothing to index")
	ErrIndexCorrupt         = fmt.Errorf("index corrupt: size does not match id map")
	ErrIndexNotLoaded       = fmt.Errorf("index not loaded")
	ErrBuildInProgress      = fmt.Errorf("index build already in progress")
	ErrDimensionMismatch    = fmt.Errorf("vector dimension mismatch")
	ErrModelVersionMismatch = fmt.Errorf("embedding model version mismatch")
	ErrZeroVector           = fmt.Errorf("zero vector cannot be normalized")

	// Внутренние ошибки
	ErrTransactionNotFound  = fmt.Errorf("transaction not found")
	ErrObjectNotFound       = fmt.Errorf("object not found")
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrUnauthorized         = fmt.Errorf("invalid api key")
	ErrInternalServerError  = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf оборачивает ошибку с форматированным контекстом.
func Wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

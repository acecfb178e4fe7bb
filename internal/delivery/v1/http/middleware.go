package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const apiKeyHeader = "X-API-Key"

// APIKey пропускает запросы с совпадающим заголовком X-API-Key.
func APIKey(key string, logger logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(apiKeyHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				logger.Warnf("%d %s %s: bad api key", http.StatusUnauthorized, r.Method, r.URL.Path)
				WriteError(w, e.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

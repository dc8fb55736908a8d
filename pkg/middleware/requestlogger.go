package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/logger"
)

// ShopperKeyHeader identifies the storefront basket/shopper when it is not
// part of the URL.
const ShopperKeyHeader = "X-Shopper-Key"

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, shopper_key, order_no, trace_id and span_id. Mount it after
// RequestLogging and Tracing, inside the chi router so URL params resolve.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			shopperKey := chi.URLParam(r, "shopperKey")
			if shopperKey == "" {
				shopperKey = r.Header.Get(ShopperKeyHeader)
			}
			if shopperKey != "" {
				ctx = logger.WithShopperKey(ctx, shopperKey)
			}
			if orderNo := chi.URLParam(r, "orderNo"); orderNo != "" {
				ctx = logger.WithOrderNo(ctx, orderNo)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

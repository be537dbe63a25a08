package mergetest

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

// the merged body is already a compressed container for xlsx
var gzipExcludedExtensions = []string{".xlsx", ".zip"}

func loggerMiddleware() gin.HandlerFunc {
	httpLogger := slog.Default().WithGroup("mergetest")

	return slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}

func gzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths([]string{"/healthz"}),
		gzip.WithExcludedExtensions(gzipExcludedExtensions),
	)
}

// corsMiddleware lets a browser page on another origin read X-Metadata.
func corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.ExposeHeaders = []string{HeaderMetadata, "Content-Disposition"}
	return cors.New(cfg)
}

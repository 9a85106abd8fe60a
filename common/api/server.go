package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouteFactory func(router *gin.Engine)

type RouterOption struct {
	OriginsAllowed   []string
	IsolationHeaders bool // set COEP/COOP so that pages can use SharedArrayBuffer
}

// ServeContext serves until ctx is done, then shuts the server down gracefully.
func ServeContext(ctx context.Context, endpoint string, handler http.Handler) error {
	server := http.Server{
		Addr:    endpoint,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return http.ErrServerClosed
}

func NewRouter(factory RouteFactory, option ...RouterOption) *gin.Engine {
	var opt RouterOption
	if len(option) > 0 {
		opt = option[0]
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(newCorsMiddleware(opt.OriginsAllowed))

	if opt.IsolationHeaders {
		router.Use(isolationMiddleware)
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		router.Use(gin.Logger())
	}

	factory(router)

	return router
}

func newCorsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.DefaultConfig()
	conf.AllowMethods = append(conf.AllowMethods, "OPTIONS")
	conf.AllowHeaders = append(conf.AllowHeaders, "*")

	if len(origins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}

	return cors.New(conf)
}

func isolationMiddleware(c *gin.Context) {
	c.Header("Cross-Origin-Embedder-Policy", "require-corp")
	c.Header("Cross-Origin-Opener-Policy", "same-origin")
	c.Header("Cross-Origin-Resource-Policy", "cross-origin")
	c.Next()
}

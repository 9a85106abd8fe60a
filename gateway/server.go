// Package gateway serves the published manifest and the raw contents of the template files, which is all
// a hydrator needs to rebuild the template tree elsewhere.
package gateway

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/common/api"
	"github.com/webcontainer-demo/livedemo/metrics"
	"github.com/webcontainer-demo/livedemo/tree"
)

const (
	DefaultBasePath      = "/web-container-demo/"
	DefaultManifestName  = "dir.json"
	DefaultContentPrefix = "container"

	defaultCacheSize   = 256
	defaultCacheExpiry = time.Minute
)

type Config struct {
	Endpoint       string        // http endpoint
	BasePath       string        // URL prefix of all routes
	ManifestName   string        // manifest file name under BasePath
	ContentPrefix  string        // file contents are served under BasePath/ContentPrefix/
	Writable       bool          // allow writing template files through the API
	CacheSize      int           // max cached file contents
	CacheExpiry    time.Duration // lifetime of cached file contents
	OriginsAllowed []string      // CORS origins, all if empty
}

func (config *Config) normalize() {
	if len(config.BasePath) == 0 {
		config.BasePath = DefaultBasePath
	}
	if len(config.ManifestName) == 0 {
		config.ManifestName = DefaultManifestName
	}
	if len(config.ContentPrefix) == 0 {
		config.ContentPrefix = DefaultContentPrefix
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaultCacheSize
	}
	if config.CacheExpiry <= 0 {
		config.CacheExpiry = defaultCacheExpiry
	}
}

// Server exposes a Publisher over HTTP.
type Server struct {
	config    Config
	publisher *tree.Publisher
	cache     *expirable.LRU[string, *content]

	logger *logrus.Logger
}

// New creates a gateway for the given publisher. Cached contents are dropped on every publish.
func New(publisher *tree.Publisher, config Config, opts ...common.LogOption) *Server {
	config.normalize()

	server := &Server{
		config:    config,
		publisher: publisher,
		cache:     expirable.NewLRU[string, *content](config.CacheSize, nil, config.CacheExpiry),
		logger:    common.NewLogger(opts...),
	}

	publisher.OnPublish(func(*tree.Published) {
		server.cache.Purge()
	})

	return server
}

// ManifestPath returns the URL path of the manifest.
func (s *Server) ManifestPath() string {
	return path.Join("/", s.config.BasePath, s.config.ManifestName)
}

// ContentPath returns the URL path prefix of file contents, with a trailing slash.
func (s *Server) ContentPath() string {
	return path.Join("/", s.config.BasePath, s.config.ContentPrefix) + "/"
}

// Routes registers all gateway routes.
func (s *Server) Routes(router *gin.Engine) {
	router.Use(metrics.Middleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	base := router.Group(path.Join("/", s.config.BasePath))

	base.GET(s.config.ManifestName, s.getManifest)
	base.GET(s.config.ContentPrefix+"/*filePath", s.getContent)

	apiGroup := base.Group("/api")
	apiGroup.GET("/status", api.Wrap(s.getStatus))
	apiGroup.PUT("/files/*filePath", api.Wrap(s.putFile))
}

// Handler returns the HTTP handler with CORS and cross origin isolation headers.
func (s *Server) Handler() http.Handler {
	return api.NewRouter(s.Routes, api.RouterOption{
		OriginsAllowed:   s.config.OriginsAllowed,
		IsolationHeaders: true,
	})
}

// Serve serves until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"endpoint": s.config.Endpoint,
		"manifest": s.ManifestPath(),
		"content":  s.ContentPath(),
	}).Info("Gateway started")

	return api.ServeContext(ctx, s.config.Endpoint, s.Handler())
}

func (s *Server) getManifest(c *gin.Context) {
	latest := s.publisher.Latest()
	if latest == nil {
		c.JSON(http.StatusServiceUnavailable, ErrManifestUnavailable)
		return
	}

	etag := `"` + latest.Digest.Hex() + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")

	if match := c.GetHeader("If-None-Match"); match == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", latest.Data)
}

// relativePath validates a requested file path: it must stay under the template root and must not
// name an entry that snapshots filter out.
func (s *Server) relativePath(filePath string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+filePath), "/")
	if len(cleaned) == 0 {
		return "", ErrFileNotFound
	}

	for _, part := range strings.Split(cleaned, "/") {
		if s.publisher.Snapshotter().Excluded(part) {
			return "", ErrPathForbidden
		}
	}

	return cleaned, nil
}

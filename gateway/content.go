package gateway

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/metrics"
	"github.com/zeebo/xxh3"
)

// content is a cached template file, valid while the file keeps its size and modification time.
type content struct {
	data    []byte
	etag    string
	size    int64
	modTime time.Time
}

// getContent serves the raw contents of a template file.
func (s *Server) getContent(c *gin.Context) {
	relpath, err := s.relativePath(c.Param("filePath"))
	if err != nil {
		c.JSON(http.StatusNotFound, err)
		return
	}

	file, err := s.readFile(relpath)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrFileNotFound) {
		c.JSON(http.StatusNotFound, ErrFileNotFound)
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("path", relpath).Warn("Failed to read template file")
		c.JSON(http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("ETag", file.etag)
	c.Header("Cache-Control", "no-cache")

	if match := c.GetHeader("If-None-Match"); match == file.etag {
		c.Status(http.StatusNotModified)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(relpath))
	if len(contentType) == 0 {
		contentType = "text/plain; charset=utf-8"
	}

	c.Data(http.StatusOK, contentType, file.data)
	metrics.RecordContentServed(len(file.data))
}

func (s *Server) readFile(relpath string) (*content, error) {
	filename := filepath.Join(s.publisher.Root(), filepath.FromSlash(relpath))

	info, err := os.Stat(filename)
	if err != nil {
		s.cache.Remove(relpath)
		return nil, err
	}

	if info.IsDir() {
		s.cache.Remove(relpath)
		return nil, ErrFileNotFound.WithData("path is a directory")
	}

	if file, ok := s.cache.Get(relpath); ok && file.size == info.Size() && file.modTime.Equal(info.ModTime()) {
		return file, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read %s", filename)
	}

	file := &content{
		data:    data,
		etag:    fmt.Sprintf(`"%x"`, xxh3.Hash128(data).Bytes()),
		size:    info.Size(),
		modTime: info.ModTime(),
	}
	s.cache.Add(relpath, file)

	return file, nil
}

type status struct {
	Root      string `json:"root"`
	Manifest  string `json:"manifest"`
	Digest    string `json:"digest"`
	Files     int    `json:"files"`
	Dirs      int    `json:"dirs"`
	Published int64  `json:"published"`
	Writable  bool   `json:"writable"`
}

func (s *Server) getStatus(c *gin.Context) (interface{}, error) {
	latest := s.publisher.Latest()
	if latest == nil {
		return nil, ErrManifestUnavailable
	}

	files, dirs := latest.Tree.Count()

	return status{
		Root:      s.publisher.Root(),
		Manifest:  s.ManifestPath(),
		Digest:    latest.Digest.Hex(),
		Files:     files,
		Dirs:      dirs,
		Published: latest.Time.Unix(),
		Writable:  s.config.Writable,
	}, nil
}

// putFile overwrites or creates a template file and republishes the manifest.
func (s *Server) putFile(c *gin.Context) (interface{}, error) {
	if !s.config.Writable {
		return nil, ErrReadOnly
	}

	var input struct {
		Contents *string `json:"contents" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, err
	}

	relpath, err := s.relativePath(c.Param("filePath"))
	if err != nil {
		return nil, err
	}

	filename := filepath.Join(s.publisher.Root(), filepath.FromSlash(relpath))
	if info, err := os.Stat(filename); err == nil && info.IsDir() {
		return nil, ErrPathForbidden.WithData("path is a directory")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, errors.WithMessage(err, "failed to create parent directory")
	}

	if err := os.WriteFile(filename, []byte(*input.Contents), 0644); err != nil {
		return nil, errors.WithMessage(err, "failed to write file")
	}

	s.logger.WithFields(logrus.Fields{
		"path": relpath,
		"size": len(*input.Contents),
	}).Debug("Template file written")

	published, err := s.publisher.Publish()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to republish manifest")
	}

	return published.Digest.Hex(), nil
}

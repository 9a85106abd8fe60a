package gateway

import "github.com/webcontainer-demo/livedemo/common/api"

var (
	ErrManifestUnavailable = api.NewBusinessError(101, "Manifest not published yet")
	ErrFileNotFound        = api.NewBusinessError(102, "File not found")
	ErrPathForbidden       = api.NewBusinessError(103, "Path forbidden")
	ErrReadOnly            = api.NewBusinessError(104, "Template is read only")
)

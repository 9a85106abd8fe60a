package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webcontainer-demo/livedemo/common/api"
)

var (
	ErrPreviewUnavailable = api.NewBusinessError(201, "Dev server not ready")
	ErrSessionClosed      = api.NewBusinessError(202, "Session closed")
)

type status struct {
	ID       string `json:"id"`
	State    State  `json:"state"`
	URL      string `json:"url,omitempty"`
	EditPath string `json:"editPath"`
	Pending  bool   `json:"pending"`
}

// Routes registers the editor and preview endpoints.
func (s *Session) Routes(router *gin.Engine) {
	router.PUT("/edit", api.Wrap(s.putEdit))
	router.GET("/preview", s.getPreview)
	router.GET("/api/status", api.Wrap(s.getStatus))
}

func (s *Session) putEdit(c *gin.Context) (interface{}, error) {
	var input struct {
		Code *string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, err
	}

	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}

	s.OnCodeChange(*input.Code)

	return nil, nil
}

func (s *Session) getPreview(c *gin.Context) {
	url := s.URL()
	if len(url) == 0 {
		c.JSON(http.StatusServiceUnavailable, ErrPreviewUnavailable.WithData(s.State()))
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, url)
}

func (s *Session) getStatus(c *gin.Context) (interface{}, error) {
	return status{
		ID:       s.ID(),
		State:    s.State(),
		URL:      s.URL(),
		EditPath: s.config.EditPath,
		Pending:  s.edits.Pending(),
	}, nil
}

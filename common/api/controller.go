package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const httpStatusCodeInternalError = 600

func Wrap(controller func(c *gin.Context) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := controller(c)
		if err != nil {
			var businessErr *BusinessError
			var validationErrs validator.ValidationErrors

			switch {
			case errors.As(err, &businessErr):
				// custom business error
				c.JSON(http.StatusOK, businessErr)
			case errors.As(err, &validationErrs):
				// binding error
				c.JSON(http.StatusOK, ErrValidation.WithData(validationErrs.Error()))
			default:
				// internal server error
				c.JSON(httpStatusCodeInternalError, ErrInternal.WithData(err.Error()))
			}
		} else if result == nil {
			c.JSON(http.StatusOK, ErrNil)
		} else {
			c.JSON(http.StatusOK, ErrNil.WithData(result))
		}
	}
}

package api

// General errors. Packages serving routes define their own codes from 100 up.
var (
	ErrNil        = NewBusinessError(0, "Success")
	ErrValidation = NewBusinessError(1, "Invalid parameter")
	ErrInternal   = NewBusinessError(2, "Internal server error")
)

// BusinessError is the envelope of every JSON response, code 0 meaning success.
type BusinessError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func NewBusinessError(code int, message string) *BusinessError {
	return &BusinessError{code, message, nil}
}

func NewBusinessErrorWithData(code int, message string, data interface{}) *BusinessError {
	return &BusinessError{code, message, data}
}

func (err *BusinessError) Error() string {
	return err.Message
}

// Is matches business errors by code, so copies made with WithData match their origin.
func (err *BusinessError) Is(target error) bool {
	other, ok := target.(*BusinessError)
	return ok && other != nil && other.Code == err.Code
}

func (err *BusinessError) WithData(data interface{}) *BusinessError {
	return NewBusinessErrorWithData(err.Code, err.Message, data)
}

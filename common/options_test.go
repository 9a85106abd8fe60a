package common

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	silent := NewLogger()
	assert.Equal(t, io.Discard, silent.Out)

	dedicated := NewLogger(LogOption{LogLevel: logrus.DebugLevel})
	assert.Equal(t, logrus.DebugLevel, dedicated.GetLevel())
	assert.Equal(t, os.Stderr, dedicated.Out)

	shared := logrus.New()
	assert.Same(t, shared, NewLogger(LogOption{Logger: shared, LogLevel: logrus.TraceLevel}))
	assert.Same(t, logrus.StandardLogger(), NewLogger(StandardLogOption()))
}

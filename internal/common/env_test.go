package common

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestGetenvOrDefault(t *testing.T) {
	t.Setenv("TASKPROGRESS_TEST_ADDR", "redis:6380")

	assert.Equal(t, "redis:6380", GetenvOrDefault("TASKPROGRESS_TEST_ADDR", "localhost:6379"))
	assert.Equal(t, "fallback", GetenvOrDefault("TASKPROGRESS_TEST_MISSING", "fallback"))
}

func TestGetIntOrDefault(t *testing.T) {
	t.Setenv("TASKPROGRESS_TEST_DB", "3")
	t.Setenv("TASKPROGRESS_TEST_BAD", "three")

	assert.Equal(t, 3, GetIntOrDefault("TASKPROGRESS_TEST_DB", 0))
	assert.Equal(t, 7, GetIntOrDefault("TASKPROGRESS_TEST_BAD", 7))
	assert.Equal(t, 10, GetIntOrDefault("TASKPROGRESS_TEST_UNSET", 10))
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	logger := SetupLogging()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

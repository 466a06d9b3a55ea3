package logging_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pharmacy/internal/logging"
)

func TestNew(t *testing.T) {
	log, err := logging.New("debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	_, err = logging.New("loud", "text")
	assert.Error(t, err)

	_, err = logging.New("info", "xml")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	fallback, _ := test.NewNullLogger()
	scoped, hook := test.NewNullLogger()

	assert.Equal(t, logrus.FieldLogger(fallback), logging.FromContext(context.Background(), fallback))

	ctx := logging.WithContext(context.Background(), scoped.WithField("request_id", "abc"))
	logging.FromContext(ctx, fallback).Info("hello")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "abc", hook.LastEntry().Data["request_id"])
}

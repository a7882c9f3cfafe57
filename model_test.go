package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3ObjectCreatedEvent(t *testing.T) {
	event := NewS3ObjectCreatedEvent(S3ObjectInfo{Bucket: "my-bucket", Key: "data/file.csv"})

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Records":[{"s3":{"bucket":{"name":"my-bucket"},"object":{"key":"data/file.csv"}}}]}`, string(data))

	obj, err := DecodeFirstObject(data)
	require.NoError(t, err)
	assert.Equal(t, S3ObjectInfo{Bucket: "my-bucket", Key: "data/file.csv"}, obj)
}

func TestDecodeFirstObject(t *testing.T) {
	t.Run("No records", func(t *testing.T) {
		data, err := json.Marshal(NewS3ObjectCreatedEvent())
		require.NoError(t, err)

		_, err = DecodeFirstObject(data)
		require.Error(t, err)
		assert.Equal(t, "malformed event: event has no Records", err.Error())

		var malformedErr *MalformedEventError
		assert.True(t, errors.As(err, &malformedErr))
	})

	t.Run("Extra fields are ignored", func(t *testing.T) {
		obj, err := DecodeFirstObject([]byte(`{
			"Records": [{
				"eventName": "ObjectCreated:Put",
				"s3": {
					"bucket": {"name": "b", "arn": "arn:aws:s3:::b"},
					"object": {"key": "k", "size": 1024}
				}
			}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, S3ObjectInfo{Bucket: "b", Key: "k"}, obj)
	})

	t.Run("Null s3", func(t *testing.T) {
		_, err := DecodeFirstObject([]byte(`{"Records": [{"s3": null}]}`))
		require.Error(t, err)
		assert.Equal(t, "malformed event: Records[0].s3.bucket is missing", err.Error())
	})

	t.Run("Record not an object", func(t *testing.T) {
		_, err := DecodeFirstObject([]byte(`{"Records": ["b/k"]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed event: cannot decode Records[0]:")
	})
}

func TestNewMessage(t *testing.T) {
	assert.Equal(t,
		"Hello user, orchestrator has been invoked with:  S3://B/K!",
		NewMessage(S3ObjectInfo{Bucket: "B", Key: "K"}),
	)
}

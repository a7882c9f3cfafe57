package main

import (
	"encoding/json"
	"fmt"
)

type S3Record struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

type S3ObjectCreatedEvent struct {
	Records []S3Record `json:"Records"`
}

type S3ObjectInfo struct {
	Bucket string
	Key    string
}

// Result is the payload returned to the invoker.
type Result struct {
	Message string `json:"message"`
}

// DecodeFirstObject reads Records[0].s3.bucket.name and Records[0].s3.object.key
// from a raw notification. Later records are ignored. Keys must match exactly;
// encoding/json struct decoding would also accept "records" or "NAME".
func DecodeFirstObject(data []byte) (S3ObjectInfo, error) {
	var event map[string]json.RawMessage
	if err := json.Unmarshal(data, &event); err != nil {
		return S3ObjectInfo{}, NewMalformedEventError(fmt.Sprintf("cannot decode event: %v", err))
	}
	var records []json.RawMessage
	if raw, ok := event["Records"]; ok {
		if err := json.Unmarshal(raw, &records); err != nil {
			return S3ObjectInfo{}, NewMalformedEventError(fmt.Sprintf("cannot decode Records: %v", err))
		}
	}
	if len(records) == 0 {
		return S3ObjectInfo{}, NewMalformedEventError("event has no Records")
	}

	bucket, err := lookupString(records[0], "Records[0]", "s3", "bucket", "name")
	if err != nil {
		return S3ObjectInfo{}, err
	}
	key, err := lookupString(records[0], "Records[0]", "s3", "object", "key")
	if err != nil {
		return S3ObjectInfo{}, err
	}

	return S3ObjectInfo{Bucket: bucket, Key: key}, nil
}

// lookupString follows path through nested objects. A null value counts as missing.
func lookupString(raw json.RawMessage, location string, path ...string) (string, error) {
	for _, name := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", NewMalformedEventError(fmt.Sprintf("cannot decode %s: %v", location, err))
		}
		location += "." + name
		next, ok := obj[name]
		if !ok {
			return "", NewMalformedEventError(fmt.Sprintf("%s is missing", location))
		}
		raw = next
	}

	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", NewMalformedEventError(fmt.Sprintf("cannot decode %s: %v", location, err))
	}
	if value == nil {
		return "", NewMalformedEventError(fmt.Sprintf("%s is missing", location))
	}

	return *value, nil
}

// NewS3ObjectCreatedEvent builds a notification with one record per object.
func NewS3ObjectCreatedEvent(objects ...S3ObjectInfo) S3ObjectCreatedEvent {
	event := S3ObjectCreatedEvent{Records: make([]S3Record, 0, len(objects))}
	for _, obj := range objects {
		var record S3Record
		record.S3.Bucket.Name = obj.Bucket
		record.S3.Object.Key = obj.Key
		event.Records = append(event.Records, record)
	}

	return event
}

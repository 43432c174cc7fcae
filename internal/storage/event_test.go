package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(refs ...ObjectRef) events.S3Event {
	event := events.S3Event{}
	for _, ref := range refs {
		event.Records = append(event.Records, events.S3EventRecord{
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: ref.Bucket},
				Object: events.S3Object{Key: ref.Key},
			},
		})
	}
	return event
}

func TestRespondToEvent_DecodesKeys(t *testing.T) {
	tests := []struct {
		key, expectedKey, bucket, expectedBucket string
	}{
		{"origin/a_file.csv", "origin/a_file.csv", "bucket", "bucket"},
		{"origin/a_%7Bfile%7D.csv", "origin/a_{file}.csv", "%7Bbucket%7D", "{bucket}"},
		{"Im+a+problem.csv", "Im a problem.csv", "bucket", "bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var calls int
			err := RespondToEvent(context.Background(), newEvent(ObjectRef{Bucket: tt.bucket, Key: tt.key}),
				func(_ context.Context, key, bucket string) error {
					calls++
					assert.Equal(t, tt.expectedKey, key)
					assert.Equal(t, tt.expectedBucket, bucket)
					return nil
				})

			require.NoError(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRespondToEvent_StopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	event := newEvent(
		ObjectRef{Bucket: "b", Key: "one.csv"},
		ObjectRef{Bucket: "b", Key: "two.csv"},
	)

	var seen []string
	err := RespondToEvent(context.Background(), event, func(_ context.Context, key, _ string) error {
		seen = append(seen, key)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"one.csv"}, seen)
}

func TestObjectRefs_InvalidEscape(t *testing.T) {
	_, err := ObjectRefs(newEvent(ObjectRef{Bucket: "b", Key: "bad%zz.csv"}))

	assert.Error(t, err)
}

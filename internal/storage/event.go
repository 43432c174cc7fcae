package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

// ObjectRef points at a single object named in a storage notification.
type ObjectRef struct {
	Bucket string
	Key    string
}

// ObjectRefs extracts the decoded bucket and key of every record in event.
// Notifications URL-encode keys ("+" for spaces), so they are unescaped here.
func ObjectRefs(event events.S3Event) ([]ObjectRef, error) {
	refs := make([]ObjectRef, 0, len(event.Records))
	for i, record := range event.Records {
		bucket, err := url.QueryUnescape(record.S3.Bucket.Name)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid bucket name %q: %w", i, record.S3.Bucket.Name, err)
		}
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid object key %q: %w", i, record.S3.Object.Key, err)
		}
		refs = append(refs, ObjectRef{Bucket: bucket, Key: key})
	}
	return refs, nil
}

// RespondToEvent invokes callback for each object in the event, in order.
// The first callback error stops processing.
func RespondToEvent(ctx context.Context, event events.S3Event, callback func(ctx context.Context, key, bucket string) error) error {
	refs, err := ObjectRefs(event)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callback(ctx, ref.Key, ref.Bucket); err != nil {
			return fmt.Errorf("process %s/%s: %w", ref.Bucket, ref.Key, err)
		}
	}
	return nil
}

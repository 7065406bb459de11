package notification

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
)

const objectCreatedPrefix = "s3:ObjectCreated:"

// Event is the S3-compatible notification document MinIO publishes to its
// AMQP and Kafka targets.
type Event struct {
	EventName string   `json:"EventName"`
	Key       string   `json:"Key"`
	Records   []Record `json:"Records"`
}

type Record struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key         string `json:"key"`
			Size        int64  `json:"size"`
			ContentType string `json:"contentType"`
		} `json:"object"`
	} `json:"s3"`
}

// Decode parses body and returns the objects created in bucket, in record
// order. Object keys arrive query-escaped and are unescaped here. Derived
// objects written by the ingest pipeline itself are skipped.
func Decode(body []byte, bucket string) ([]pipeline.ObjectReference, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode bucket notification: %w", err)
	}

	var refs []pipeline.ObjectReference
	for _, rec := range ev.Records {
		if !strings.HasPrefix(rec.EventName, objectCreatedPrefix) {
			continue
		}
		if rec.S3.Bucket.Name != bucket {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape object key %q: %w", rec.S3.Object.Key, err)
		}
		if key == "" || isDerived(key) {
			continue
		}
		refs = append(refs, pipeline.ObjectReference{Bucket: bucket, Key: key})
	}
	return refs, nil
}

func isDerived(key string) bool {
	return strings.Contains(path.Base(key), ".processed.")
}

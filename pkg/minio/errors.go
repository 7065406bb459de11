package minio

import (
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

const (
	codeNoSuchKey    = "NoSuchKey"
	codeNoSuchBucket = "NoSuchBucket"
	codeInvalidRange = "InvalidRange"
)

// translateError maps a minio-go error for bucket/key onto an apperr kind.
func translateError(err error, op, bucket, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrDependencyUnavailable) {
		return err
	}

	target := bucket
	if key != "" {
		target = bucket + "/" + key
	}

	switch minio.ToErrorResponse(err).Code {
	case codeNoSuchKey:
		return apperr.NotFound(fmt.Sprintf("object %s not found", target), err)
	case codeNoSuchBucket:
		return apperr.NotFound(fmt.Sprintf("bucket %s not found", bucket), err)
	default:
		return apperr.Dependency(fmt.Sprintf("object store %s failed for %s", op, target), err)
	}
}

func isInvalidRange(err error) bool {
	return minio.ToErrorResponse(err).Code == codeInvalidRange
}

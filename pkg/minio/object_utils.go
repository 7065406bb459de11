package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
)

// EnsureBucket creates bucket if it does not exist yet. Calling it for an
// existing bucket is a no-op.
func (m *Minio) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return translateError(fmt.Errorf("bucket name is empty"), "ensure bucket", bucket, "")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Connection.Timeout)
	defer cancel()

	exists, err := m.Client.BucketExists(ctx, bucket)
	if err != nil {
		m.logger.ErrorWithContext(ctx, "failed to check if bucket exists", err, map[string]interface{}{
			"bucket": bucket,
		})
		return translateError(err, "bucket lookup", bucket, "")
	}
	if exists {
		return nil
	}

	m.logger.Info("Bucket does not exist, creating it", nil, map[string]interface{}{
		"bucket": bucket,
		"region": m.cfg.Connection.Region,
	})

	err = m.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
		Region: m.cfg.Connection.Region,
	})
	if err != nil {
		// lost a creation race with a concurrent request
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		m.logger.ErrorWithContext(ctx, "failed to create bucket", err, map[string]interface{}{
			"bucket": bucket,
		})
		return translateError(err, "create bucket", bucket, "")
	}

	m.logger.Info("Successfully created bucket", nil, map[string]interface{}{
		"bucket": bucket,
	})
	return nil
}

// Fetch retrieves the full contents of bucket/key.
func (m *Minio) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Connection.Timeout)
	defer cancel()

	data, err := m.get(ctx, bucket, key)
	if err != nil {
		m.logger.ErrorWithContext(ctx, "failed to fetch object", err, map[string]interface{}{
			"bucket": bucket,
			"key":    key,
		})
		return nil, translateError(err, "fetch", bucket, key)
	}
	return data, nil
}

func (m *Minio) get(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := m.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer m.closeReader(ctx, reader, bucket, key)

	objectInfo, err := reader.Stat()
	if err != nil {
		return nil, err
	}

	size := objectInfo.Size

	if size < m.cfg.DownloadConfig.SmallFileThreshold {
		data := make([]byte, size)
		if _, err = io.ReadFull(reader, data); err != nil {
			return nil, err
		}
		return data, nil
	}

	// For larger files, use the buffer pool
	bufferSize := min(size, int64(m.cfg.DownloadConfig.InitialBufferSize))
	buffer := m.bufferPool.Get()
	buffer.Reset()
	if buffer.Cap() < int(bufferSize) {
		buffer.Grow(int(bufferSize))
	}
	defer m.bufferPool.Put(buffer)

	if _, err = io.Copy(buffer, reader); err != nil {
		return nil, err
	}

	// independent copy, the buffer goes back to the pool
	result := make([]byte, buffer.Len())
	copy(result, buffer.Bytes())
	return result, nil
}

// VerifyExists confirms bucket/key is readable by fetching at most its
// first byte. An empty object counts as existing.
func (m *Minio) VerifyExists(ctx context.Context, bucket, key string) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Connection.Timeout)
	defer cancel()

	err := m.readFirstByte(ctx, bucket, key)
	if err == nil || isInvalidRange(err) {
		return nil
	}

	m.logger.ErrorWithContext(ctx, "object existence check failed", err, map[string]interface{}{
		"bucket": bucket,
		"key":    key,
	})
	return translateError(err, "existence check", bucket, key)
}

func (m *Minio) readFirstByte(ctx context.Context, bucket, key string) error {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(0, 0); err != nil {
		return err
	}

	reader, err := m.Client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return err
	}
	defer m.closeReader(ctx, reader, bucket, key)

	// GetObject is lazy; the first read surfaces missing keys
	var one [1]byte
	if _, err := reader.Read(one[:]); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Upload stores data at bucket/key with an explicit length and content type.
func (m *Minio) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Connection.Timeout)
	defer cancel()

	_, err := m.Client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		m.logger.ErrorWithContext(ctx, "failed to upload object", err, map[string]interface{}{
			"bucket":       bucket,
			"key":          key,
			"size":         len(data),
			"content_type": contentType,
		})
		return translateError(err, "upload", bucket, key)
	}
	return nil
}

// PresignGet returns a time-limited download URL for bucket/key. When a
// BaseURL is configured the scheme and host are rewritten to it.
func (m *Minio) PresignGet(ctx context.Context, bucket, key string) (string, error) {
	presignedURL, err := m.Client.PresignedGetObject(ctx, bucket, key, m.cfg.PresignedConfig.ExpiryDuration, url.Values{})
	if err != nil {
		m.logger.ErrorWithContext(ctx, "failed to presign object", err, map[string]interface{}{
			"bucket": bucket,
			"key":    key,
		})
		return "", translateError(err, "presign", bucket, key)
	}

	if m.cfg.PresignedConfig.BaseURL != "" {
		rewritten, err := urlGenerator(presignedURL, m.cfg.PresignedConfig.BaseURL)
		if err != nil {
			return "", translateError(err, "presign", bucket, key)
		}
		return rewritten, nil
	}
	return presignedURL.String(), nil
}

// ListKeys returns every object key in bucket under prefix.
func (m *Minio) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for object := range m.Client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			m.logger.ErrorWithContext(ctx, "failed to list objects", object.Err, map[string]interface{}{
				"bucket": bucket,
				"prefix": prefix,
			})
			return nil, translateError(object.Err, "list", bucket, "")
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

func (m *Minio) closeReader(ctx context.Context, reader io.Closer, bucket, key string) {
	if err := reader.Close(); err != nil {
		m.logger.ErrorWithContext(ctx, "failed to close object reader", err, map[string]interface{}{
			"bucket": bucket,
			"key":    key,
		})
	}
}

// urlGenerator replaces the host of a presigned URL with a custom base URL
func urlGenerator(presignedUrl *url.URL, baseUrl string) (string, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return "", fmt.Errorf("invalid BaseURL format: %v", err)
	}

	finalURL, err := url.Parse(presignedUrl.String())
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned URL: %v", err)
	}
	finalURL.Scheme = base.Scheme
	finalURL.Host = base.Host
	if base.Path != "" && base.Path != "/" {
		finalURL.Path = base.ResolveReference(&url.URL{Path: finalURL.Path}).Path
	}
	return finalURL.String(), nil
}

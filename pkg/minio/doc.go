// Package minio is the object store adapter for screensim.
//
// It wraps minio-go with the handful of operations the ingestion and query
// pipelines need: idempotent bucket creation, whole-object fetch, a cheap
// existence check, sized uploads with a content type, presigned download
// URLs and prefix listing for batch tooling.
//
// Every failure is translated into an apperr kind: missing buckets and keys
// become apperr.ErrNotFound, everything else apperr.ErrDependencyUnavailable.
// Object readers are closed on every path.
//
// Basic Usage:
//
//	client, err := minio.NewClient(minio.Config{
//		Connection: minio.ConnectionConfig{
//			Endpoint:        "localhost:9000",
//			AccessKeyID:     "minioadmin",
//			SecretAccessKey: "minioadmin",
//		},
//	}, log)
//	if err != nil {
//		return err
//	}
//
//	if err := client.EnsureBucket(ctx, "screenshots"); err != nil {
//		return err
//	}
//	data, err := client.Fetch(ctx, "screenshots", "shots/a.png")
//
// The FXModule provides *Minio and runs a background health monitor whose
// state is exposed through Healthy.
package minio

package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/Aleph-Alpha/screensim/pkg/logger"
	"github.com/Aleph-Alpha/screensim/pkg/minio"
	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
	"github.com/Aleph-Alpha/screensim/pkg/requestid"
)

const (
	defaultIngestConcurrency = 4
	scrollPageSize           = 256
)

var (
	ingestTSV          string
	ingestBucket       string
	ingestPrefix       string
	ingestIncludes     []string
	ingestExcludes     []string
	ingestConcurrency  int
	ingestLimit        int
	ingestSkipExisting bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index screenshots in bulk",
	Long: `Ingest indexes every selected object of the source bucket. Keys come from
the second column of a TSV file (--tsv) or from listing the bucket under
--prefix. Keys already present in the collection are skipped.

Example usage:
  screensim ingest --tsv screens_meta.tsv --concurrency 8
  screensim ingest --prefix shots/ --include '**/*.png' --exclude '**/drafts/**'`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestTSV, "tsv", "", "TSV file with object keys in the second column")
	ingestCmd.Flags().StringVar(&ingestBucket, "bucket", "", "source bucket (default is the upload bucket)")
	ingestCmd.Flags().StringVar(&ingestPrefix, "prefix", "", "key prefix to list when no --tsv is given")
	ingestCmd.Flags().StringSliceVar(&ingestIncludes, "include", nil, "glob patterns keys must match")
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "glob patterns of keys to skip")
	ingestCmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "c", defaultIngestConcurrency, "concurrent ingests")
	ingestCmd.Flags().IntVarP(&ingestLimit, "limit", "n", 0, "ingest at most this many keys (0 = all)")
	ingestCmd.Flags().BoolVar(&ingestSkipExisting, "skip-existing", true, "skip keys already in the collection")
}

// keyLister lists object keys. *minio.Minio satisfies it.
type keyLister interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// pointScroller pages through the collection. *qdrant.QdrantClient
// satisfies it.
type pointScroller interface {
	Scroll(ctx context.Context, req qdrant.ScrollRequest) ([]qdrant.Record, string, error)
}

type ingester interface {
	Ingest(ctx context.Context, src pipeline.ObjectReference) (pipeline.IngestResult, error)
}

type failureLogger interface {
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", ingestConcurrency)
	}
	filter, err := newKeyFilter(ingestIncludes, ingestExcludes)
	if err != nil {
		return err
	}
	bucket := ingestBucket
	if bucket == "" {
		bucket = cfg.Pipeline.UploadBucket
	}

	var (
		store    *minio.Minio
		index    *qdrant.QdrantClient
		ingestor *pipeline.Ingestor
		log      *logger.Logger
	)

	return runBatch(cmd.Context(), cfg, func(ctx context.Context) error {
		keys, err := sourceKeys(ctx, store, bucket)
		if err != nil {
			return err
		}

		existing := map[string]struct{}{}
		if ingestSkipExisting {
			if existing, err = indexedKeys(ctx, index); err != nil {
				return fmt.Errorf("failed to load indexed keys: %w", err)
			}
		}

		pending, skipped := selectPending(keys, filter, existing, ingestLimit)
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Pending ingest: %d objects (skipped %d already indexed, %d keys read)\n",
			len(pending), skipped, len(keys))

		bar := newProgressBar(cmd.ErrOrStderr(), len(pending), "Ingesting")
		failures, err := ingestAll(ctx, ingestor, bucket, pending, ingestConcurrency, bar, log)
		if err != nil {
			return err
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d objects failed to ingest", failures, len(pending))
		}
		_, _ = fmt.Fprintln(out, "Done")
		return nil
	}, fx.Populate(&store, &index, &ingestor, &log))
}

func sourceKeys(ctx context.Context, store keyLister, bucket string) ([]string, error) {
	if ingestTSV != "" {
		var keys []string
		err := openTSV(ingestTSV, func(r io.Reader) error {
			var err error
			keys, err = objectKeysFromTSV(r)
			return err
		})
		return keys, err
	}

	keys, err := store.ListKeys(ctx, bucket, ingestPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, ingestPrefix, err)
	}
	return keys, nil
}

// indexedKeys collects the source_key of every point in the collection.
func indexedKeys(ctx context.Context, s pointScroller) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	err := scrollAll(ctx, s, []string{pipeline.PayloadSourceKey}, func(records []qdrant.Record) error {
		for _, rec := range records {
			if key, ok := rec.Payload[pipeline.PayloadSourceKey].(string); ok && key != "" {
				existing[key] = struct{}{}
			}
		}
		return nil
	})
	return existing, err
}

// scrollAll hands every page of the collection to fn. fields restricts the
// returned payload; nil returns all of it.
func scrollAll(ctx context.Context, s pointScroller, fields []string, fn func([]qdrant.Record) error) error {
	offset := ""
	for {
		records, next, err := s.Scroll(ctx, qdrant.ScrollRequest{
			Offset: offset,
			Limit:  scrollPageSize,
			Fields: fields,
		})
		if err != nil {
			return err
		}
		if err := fn(records); err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		offset = next
	}
}

// selectPending filters keys, drops duplicates and already indexed keys and
// caps the result at limit when limit is positive. It also returns how many
// keys were skipped because they are indexed.
func selectPending(keys []string, filter keyFilter, existing map[string]struct{}, limit int) ([]string, int) {
	seen := make(map[string]struct{}, len(keys))
	var pending []string
	skipped := 0

	for _, key := range filter.apply(keys) {
		if limit > 0 && len(pending) >= limit {
			break
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := existing[key]; ok {
			skipped++
			continue
		}
		pending = append(pending, key)
	}
	return pending, skipped
}

// ingestAll ingests keys from bucket with at most concurrency requests in
// flight. Each failure is logged and counted; a cancelled ctx stops
// scheduling and is returned as the error.
func ingestAll(ctx context.Context, ing ingester, bucket string, keys []string, concurrency int,
	bar *progressbar.ProgressBar, log failureLogger) (int, error) {
	var failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			reqCtx := requestid.NewContext(ctx, requestid.Resolve(""))
			src := pipeline.ObjectReference{Bucket: bucket, Key: key}
			if _, err := ing.Ingest(reqCtx, src); err != nil {
				failures.Add(1)
				log.ErrorWithContext(reqCtx, "ingest failed", err, map[string]interface{}{
					"bucket": bucket,
					"key":    key,
				})
			}
			_ = bar.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(failures.Load()), ctx.Err()
}

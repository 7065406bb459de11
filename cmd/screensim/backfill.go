package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
)

const maxMissingExamples = 5

var (
	backfillTSV          string
	backfillBatchSize    int
	backfillSourceBucket string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-titles",
	Short: "Repair point titles and source buckets from a TSV",
	Long: `backfill-titles reads a TSV with "src" and "filename" columns and walks the
whole collection. A point whose source_key is listed gets the filename as
title when its title differs; an unlisted point without a title gets the
base name of its key. Points without source_bucket get --source-bucket.
Vectors and other payload fields are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&backfillTSV, "tsv", "", "TSV file with src and filename columns")
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", scrollPageSize, "updates buffered before they are written")
	backfillCmd.Flags().StringVar(&backfillSourceBucket, "source-bucket", "", "bucket written to points without source_bucket (default is the upload bucket)")
	_ = backfillCmd.MarkFlagRequired("tsv")
}

// payloadIndex is the part of the vector index the backfill touches.
// *qdrant.QdrantClient satisfies it.
type payloadIndex interface {
	pointScroller
	SetPayload(ctx context.Context, ids []string, payload map[string]any) error
	Count(ctx context.Context) (uint64, error)
}

type payloadUpdate struct {
	id    string
	patch map[string]any
}

type backfillReport struct {
	Processed        int
	Updated          int
	MissingSourceKey int
	MissingExamples  []string
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if backfillBatchSize < 1 {
		return fmt.Errorf("--batch-size must be at least 1, got %d", backfillBatchSize)
	}

	var titles map[string]string
	err := openTSV(backfillTSV, func(r io.Reader) error {
		var err error
		titles, err = titlesFromTSV(r)
		return err
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Loaded %d titles from %s\n", len(titles), backfillTSV)

	sourceBucket := backfillSourceBucket
	if sourceBucket == "" {
		sourceBucket = cfg.Pipeline.UploadBucket
	}

	var index *qdrant.QdrantClient
	return runBatch(cmd.Context(), cfg, func(ctx context.Context) error {
		b := backfill{
			index:        index,
			titles:       titles,
			sourceBucket: sourceBucket,
			batchSize:    backfillBatchSize,
			progress:     cmd.ErrOrStderr(),
		}
		report, err := b.run(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "Completed. Processed: %d, updated: %d, missing source_key: %d\n",
			report.Processed, report.Updated, report.MissingSourceKey)
		if len(report.MissingExamples) > 0 {
			_, _ = fmt.Fprintf(out, "Examples of points without source_key: %s\n",
				strings.Join(report.MissingExamples, ", "))
		}
		return nil
	}, fx.Populate(&index))
}

type backfill struct {
	index        payloadIndex
	titles       map[string]string
	sourceBucket string
	batchSize    int
	progress     io.Writer
}

func (b backfill) run(ctx context.Context) (backfillReport, error) {
	var report backfillReport

	total, err := b.index.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to count points: %w", err)
	}
	bar := newProgressBar(b.progress, int(total), "Backfilling")

	var batch []payloadUpdate
	flush := func() error {
		for _, u := range batch {
			if err := b.index.SetPayload(ctx, []string{u.id}, u.patch); err != nil {
				return fmt.Errorf("failed to update point %s: %w", u.id, err)
			}
			report.Updated++
		}
		batch = batch[:0]
		return nil
	}

	err = scrollAll(ctx, b.index, nil, func(records []qdrant.Record) error {
		for _, rec := range records {
			report.Processed++
			_ = bar.Add(1)

			if _, ok := sourceKey(rec); !ok {
				report.MissingSourceKey++
				if len(report.MissingExamples) < maxMissingExamples {
					report.MissingExamples = append(report.MissingExamples, rec.ID)
				}
				continue
			}

			patch := planPatch(rec, b.titles, b.sourceBucket)
			if len(patch) == 0 {
				continue
			}
			batch = append(batch, payloadUpdate{id: rec.ID, patch: patch})
			if len(batch) >= b.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	if err := flush(); err != nil {
		return report, err
	}
	_ = bar.Finish()
	return report, nil
}

// planPatch returns the payload fields rec needs, or nil when it is up to
// date. Listed keys take their TSV title; unlisted keys only get a title
// derived from the key when they have none.
func planPatch(rec qdrant.Record, titles map[string]string, sourceBucket string) map[string]any {
	key, ok := sourceKey(rec)
	if !ok {
		return nil
	}

	patch := make(map[string]any)
	current := payloadText(rec.Payload, pipeline.PayloadTitle)
	if title, listed := titles[key]; listed {
		if current != title {
			patch[pipeline.PayloadTitle] = title
		}
	} else if current == "" {
		patch[pipeline.PayloadTitle] = pipeline.Title(key)
	}

	if sourceBucket != "" && payloadText(rec.Payload, pipeline.PayloadSourceBucket) == "" {
		patch[pipeline.PayloadSourceBucket] = sourceBucket
	}

	if len(patch) == 0 {
		return nil
	}
	return patch
}

func sourceKey(rec qdrant.Record) (string, bool) {
	key := payloadText(rec.Payload, pipeline.PayloadSourceKey)
	return key, key != ""
}

func payloadText(payload map[string]any, field string) string {
	s, _ := payload[field].(string)
	return s
}

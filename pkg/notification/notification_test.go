package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/requestid"
)

const putEvent = `{
  "EventName": "s3:ObjectCreated:Put",
  "Key": "uploads/shots/my%20shot.png",
  "Records": [
    {"eventName": "s3:ObjectCreated:Put",
     "s3": {"bucket": {"name": "uploads"}, "object": {"key": "shots/my%20shot.png", "size": 42}}},
    {"eventName": "s3:ObjectRemoved:Delete",
     "s3": {"bucket": {"name": "uploads"}, "object": {"key": "shots/gone.png"}}},
    {"eventName": "s3:ObjectCreated:CompleteMultipartUpload",
     "s3": {"bucket": {"name": "other"}, "object": {"key": "shots/elsewhere.png"}}},
    {"eventName": "s3:ObjectCreated:Put",
     "s3": {"bucket": {"name": "uploads"}, "object": {"key": "shots/my+shot.processed.jpg"}}},
    {"eventName": "s3:ObjectCreated:Copy",
     "s3": {"bucket": {"name": "uploads"}, "object": {"key": "b.png"}}}
  ]
}`

func TestDecodeFiltersCreatedEventsForBucket(t *testing.T) {
	refs, err := Decode([]byte(putEvent), "uploads")
	require.NoError(t, err)
	assert.Equal(t, []pipeline.ObjectReference{
		{Bucket: "uploads", Key: "shots/my shot.png"},
		{Bucket: "uploads", Key: "b.png"},
	}, refs)
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	_, err := Decode([]byte("not json"), "uploads")
	assert.Error(t, err)

	_, err = Decode([]byte(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"%zz"}}}]}`), "uploads")
	assert.Error(t, err)
}

func TestDecodeEmptyRecords(t *testing.T) {
	refs, err := Decode([]byte(`{"Records":[]}`), "uploads")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func newDispatcher(t *testing.T) (*Dispatcher, *MockIngestor, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	ingestor := NewMockIngestor(ctrl)
	logger := NewMockLogger(ctrl)
	logger.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().WarnWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	return NewDispatcher(Config{Bucket: "uploads", AMQPEnabled: true}, ingestor, logger), ingestor, ctrl
}

func TestHandleIngestsEachRecordWithOwnRequestID(t *testing.T) {
	d, ingestor, _ := newDispatcher(t)

	var ids []string
	record := func(ctx context.Context, _ pipeline.ObjectReference) (pipeline.IngestResult, error) {
		ids = append(ids, requestid.FromContext(ctx))
		return pipeline.IngestResult{PointID: "p"}, nil
	}
	gomock.InOrder(
		ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "shots/my shot.png"}).DoAndReturn(record),
		ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "b.png"}).DoAndReturn(record),
	)

	require.NoError(t, d.Handle(context.Background(), []byte(putEvent)))
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestHandleAttemptsAllRecordsAndJoinsErrors(t *testing.T) {
	d, ingestor, _ := newDispatcher(t)
	boom := errors.New("boom")

	ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "shots/my shot.png"}).
		Return(pipeline.IngestResult{}, boom)
	ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "b.png"}).
		Return(pipeline.IngestResult{PointID: "p"}, nil)

	err := d.Handle(context.Background(), []byte(putEvent))
	assert.ErrorIs(t, err, boom)
}

func TestRunAcksSuccessAndNacksFailureWithoutRequeue(t *testing.T) {
	d, ingestor, ctrl := newDispatcher(t)

	good := NewMockMessage(ctrl)
	good.EXPECT().Body().Return([]byte(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"ok.png"}}}]}`))
	good.EXPECT().AckMsg().Return(nil)

	bad := NewMockMessage(ctrl)
	bad.EXPECT().Body().Return([]byte(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"broken.png"}}}]}`))
	bad.EXPECT().NackMsg(false).Return(nil)

	garbage := NewMockMessage(ctrl)
	garbage.EXPECT().Body().Return([]byte("{"))
	garbage.EXPECT().NackMsg(false).Return(nil)

	ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "ok.png"}).
		Return(pipeline.IngestResult{PointID: "p"}, nil)
	ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "broken.png"}).
		Return(pipeline.IngestResult{}, errors.New("decode failed"))

	msgs := make(chan Message, 3)
	msgs <- good
	msgs <- bad
	msgs <- garbage
	close(msgs)

	d.Run(context.Background(), msgs)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.False(t, Config{}.Enabled())
	assert.Error(t, Config{KafkaEnabled: true}.Validate())
	assert.NoError(t, Config{KafkaEnabled: true, Bucket: "uploads"}.Validate())
}

func TestFXModuleRunsSourcesUntilStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	ingestor := NewMockIngestor(ctrl)
	logger := NewMockLogger(ctrl)
	logger.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	handled := make(chan struct{})
	ingestor.EXPECT().Ingest(gomock.Any(), pipeline.ObjectReference{Bucket: "uploads", Key: "b.png"}).
		DoAndReturn(func(context.Context, pipeline.ObjectReference) (pipeline.IngestResult, error) {
			close(handled)
			return pipeline.IngestResult{}, nil
		})

	msg := NewMockMessage(ctrl)
	msg.EXPECT().Body().Return([]byte(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"uploads"},"object":{"key":"b.png"}}}]}`))
	msg.EXPECT().AckMsg().Return(nil)

	source := NewMockSource(ctrl)
	source.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, wg *sync.WaitGroup) <-chan Message {
			out := make(chan Message, 1)
			out <- msg
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-ctx.Done()
				close(out)
			}()
			return out
		})

	app := fxtest.New(t,
		FXModule,
		fx.Supply(Config{Bucket: "uploads", AMQPEnabled: true}),
		fx.Provide(
			func() Ingestor { return ingestor },
			func() Logger { return logger },
			fx.Annotate(func() Source { return source }, fx.ResultTags(SourceGroup)),
		),
	)
	app.RequireStart()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not dispatched")
	}

	app.RequireStop()
}

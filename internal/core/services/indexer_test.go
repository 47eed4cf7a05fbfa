package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
	"github.com/custodia-labs/semdex/internal/runtime"
)

// uploadAndDequeue uploads a file and takes its embed task off the queue
func uploadAndDequeue(t *testing.T, env *testEnv, filename, data string) (*domain.Content, *domain.Task) {
	t.Helper()
	ctx := context.Background()
	result, err := env.contentService(t).Upload(ctx, "user-1", filename, []byte(data))
	require.NoError(t, err)
	task, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	return result.Content, task
}

func TestIndexer_ProcessTask_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")

	require.NoError(t, env.indexer().ProcessTask(ctx, task))

	got, err := env.contents.Get(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusReady, got.Status)

	emb, err := env.vectors.Get(ctx, content.ID)
	require.NoError(t, err)
	assert.Len(t, emb.Vector, testDims)
	assert.Equal(t, env.embedding.Model(), emb.ModelVersion)
}

func TestIndexer_ProcessTask_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, task := uploadAndDequeue(t, env, "a.txt", "some text")
	ix := env.indexer()

	require.NoError(t, ix.ProcessTask(ctx, task))
	require.NoError(t, ix.ProcessTask(ctx, task))

	assert.Equal(t, 1, env.vectors.Count())
	assert.Equal(t, 1, env.vectors.Upserts())
	assert.Equal(t, 1, env.embedding.Calls())
}

func TestIndexer_ProcessTask_RetryThenSucceed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")
	env.embedding.SetFailNext(1)
	ix := env.indexer()

	err := ix.ProcessTask(ctx, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)

	got, _ := env.contents.Get(ctx, content.ID)
	assert.Equal(t, domain.ContentStatusPending, got.Status)

	require.NoError(t, env.queue.Nack(ctx, task.ID, err.Error()))
	retry, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 2, retry.Attempts)

	require.NoError(t, ix.ProcessTask(ctx, retry))
	got, _ = env.contents.Get(ctx, content.ID)
	assert.Equal(t, domain.ContentStatusReady, got.Status)
}

func TestIndexer_ProcessTask_ExhaustedMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")
	env.embedding.SetFailAlways(true)
	ix := env.indexer()

	for task.CanRetry() {
		err := ix.ProcessTask(ctx, task)
		require.Error(t, err)
		require.NoError(t, env.queue.Nack(ctx, task.ID, err.Error()))
		task, err = env.queue.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, task)
	}

	// Final attempt records the failure and succeeds from the queue's view
	require.NoError(t, ix.ProcessTask(ctx, task))

	got, err := env.contents.Get(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusFailed, got.Status)
	assert.Contains(t, got.Error, "embedding")
	assert.Equal(t, 0, env.vectors.Count())
	assert.Equal(t, env.services.Settings().MaxAttempts, env.embedding.Calls())
}

func TestIndexer_ProcessTask_DimensionMismatchIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")
	env.embedding.SetDimensions(testDims + 1)

	require.NoError(t, env.indexer().ProcessTask(ctx, task))

	got, _ := env.contents.Get(ctx, content.ID)
	assert.Equal(t, domain.ContentStatusFailed, got.Status)
	assert.Equal(t, 0, env.vectors.Count())
}

func TestIndexer_ProcessTask_MissingBytesIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")
	require.NoError(t, env.blobs.Delete(ctx, content.LogicalPath))

	require.NoError(t, env.indexer().ProcessTask(ctx, task))

	got, _ := env.contents.Get(ctx, content.ID)
	assert.Equal(t, domain.ContentStatusFailed, got.Status)
	assert.Equal(t, 0, env.embedding.Calls())
}

func TestIndexer_ProcessTask_StorageUnavailableRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, task := uploadAndDequeue(t, env, "a.txt", "some text")
	env.blobs.GetErr = domain.ErrStorageUnavailable

	err := env.indexer().ProcessTask(ctx, task)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestIndexer_ProcessTask_DeletedContentDiscarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")
	require.NoError(t, env.contentService(t).Delete(ctx, "user-1", content.ID))

	require.NoError(t, env.indexer().ProcessTask(ctx, task))
	assert.Equal(t, 0, env.vectors.Count())
	assert.Equal(t, 0, env.embedding.Calls())
}

func TestIndexer_ProcessTask_UnsupportedKindRetriesUntilExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content, task := uploadAndDequeue(t, env, "clip.wav", "RIFF")
	env.embedding.SetUnsupported(domain.ContentKindAudio)
	ix := env.indexer()

	// Early attempts go back to the queue like any embedding failure
	require.True(t, task.CanRetry())
	err := ix.ProcessTask(ctx, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	got, _ := env.contents.Get(ctx, content.ID)
	assert.Equal(t, domain.ContentStatusPending, got.Status)

	task.Attempts = task.MaxAttempts
	require.NoError(t, ix.ProcessTask(ctx, task))
	got, _ = env.contents.Get(ctx, content.ID)
	assert.Equal(t, domain.ContentStatusFailed, got.Status)
	assert.Contains(t, got.Error, "audio")
}

// deadlineContents rejects MarkFailed calls made on a finished context,
// as a database driver would
type deadlineContents struct {
	driven.ContentStore
}

func (d deadlineContents) MarkFailed(ctx context.Context, id, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.ContentStore.MarkFailed(ctx, id, reason)
}

func TestIndexer_ProcessTask_LastAttemptFailsAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	content, task := uploadAndDequeue(t, env, "a.txt", "some text")
	task.Attempts = task.MaxAttempts
	env.embedding.SetFailAlways(true)

	svcs, err := runtime.NewServices(env.services.Config(), env.services.Settings(), runtime.Deps{
		Blobs:     env.blobs,
		Contents:  deadlineContents{ContentStore: env.contents},
		Vectors:   env.vectors,
		Queries:   env.queries,
		Queue:     env.queue,
		Embedding: env.embedding,
	})
	require.NoError(t, err)

	// The task deadline has already passed when the failure is recorded
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	require.NoError(t, NewIndexer(IndexerConfig{Services: svcs}).ProcessTask(ctx, task))

	got, err := env.contents.Get(context.Background(), content.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusFailed, got.Status)
}

func TestIndexer_ProcessTask_WriteFailureRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, task := uploadAndDequeue(t, env, "a.txt", "some text")
	env.vectors.UpsertErr = errors.New("connection reset")

	err := env.indexer().ProcessTask(ctx, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write embedding")
}

func TestIndexer_ProcessTask_NoContentID(t *testing.T) {
	env := newTestEnv(t)
	task := domain.NewTask(domain.TaskTypeEmbedContent, "user-1", nil)
	assert.NoError(t, env.indexer().ProcessTask(context.Background(), task))
}

func TestIndexer_RecoverPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.contentService(t)

	stale, err := svc.Upload(ctx, "user-1", "old.txt", []byte("old"))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "user-1", "new.txt", []byte("new"))
	require.NoError(t, err)
	env.contents.SetUpdatedAt(stale.Content.ID, time.Now().Add(-time.Hour))

	ix := env.indexer()
	n, err := ix.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks := env.queue.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, stale.Content.ID, tasks[2].ContentID())
	assert.Equal(t, "user-1", tasks[2].OwnerID)

	// The claim bumps updated_at so an immediate second sweep finds nothing
	n, err = ix.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIndexer_PurgeTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, task := uploadAndDequeue(t, env, "a.txt", "x")
	require.NoError(t, env.queue.Ack(ctx, task.ID))

	// Default retention keeps a task finished moments ago
	n, err := env.indexer().PurgeTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ix := NewIndexer(IndexerConfig{Services: env.services, TaskRetention: time.Nanosecond})
	time.Sleep(5 * time.Millisecond)

	n, err = ix.PurgeTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, env.queue.Tasks())
}

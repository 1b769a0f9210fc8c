package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type storedJob struct {
	job       jobModel.Job
	expiresAt time.Time
}

// InMemoryJobStore is the job store used when Redis is offline. Entries expire like the Redis
// keys do; expired ones are dropped lazily on the next save.
type InMemoryJobStore struct {
	jobMutex *sync.RWMutex
	jobMap   map[string]storedJob
	ttl      time.Duration
	now      func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return NewInMemoryJobStore(config.RedisJobStoreTTL)
}

func NewInMemoryJobStore(ttl time.Duration) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMutex: new(sync.RWMutex),
		jobMap:   make(map[string]storedJob),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (store *InMemoryJobStore) SaveJob(_ context.Context, job jobModel.Job) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()

	now := store.now()
	swept := 0
	for id, entry := range store.jobMap {
		if now.After(entry.expiresAt) {
			delete(store.jobMap, id)
			swept++
		}
	}
	store.jobMap[job.Id] = storedJob{job: job, expiresAt: now.Add(store.ttl)}
	inMemLogger.Debug("Saved job to store", "jobId", job.Id, "status", job.Status, "expired", swept)
	return nil
}

func (store *InMemoryJobStore) GetJob(_ context.Context, jobID string) (jobModel.Job, bool) {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	entry, found := store.jobMap[jobID]
	if !found || store.now().After(entry.expiresAt) {
		return jobModel.Job{}, false
	}
	return entry.job, true
}

func (store *InMemoryJobStore) DeleteJob(_ context.Context, jobID string) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobID)
}

// Len counts entries, expired ones included until the next save.
func (store *InMemoryJobStore) Len() int {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	return len(store.jobMap)
}

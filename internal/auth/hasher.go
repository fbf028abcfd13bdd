package auth

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/eleven-am/todoapi/internal/logger"
)

var errHasherClosed = errors.New("hasher is closed")

type hashResult struct {
	hash string
	err  error
}

type hashJob struct {
	password string
	result   chan<- hashResult
}

// Hasher runs bcrypt on a fixed pool of workers
type Hasher struct {
	jobs      chan hashJob
	cost      int
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHasher starts workers goroutines hashing with cost
func NewHasher(workers, cost int) *Hasher {
	if workers < 1 {
		workers = 1
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	h := &Hasher{
		jobs: make(chan hashJob),
		cost: cost,
		done: make(chan struct{}),
	}

	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go h.worker()
	}

	logger.Auth().Debugf("Started %d hashing workers (cost %d)", workers, cost)
	return h
}

func (h *Hasher) worker() {
	defer h.wg.Done()
	for {
		select {
		case job := <-h.jobs:
			hash, err := bcrypt.GenerateFromPassword([]byte(job.password), h.cost)
			job.result <- hashResult{hash: string(hash), err: err}
		case <-h.done:
			return
		}
	}
}

// Hash queues password for hashing and waits for the result
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result := make(chan hashResult, 1)

	select {
	case h.jobs <- hashJob{password: password, result: result}:
	case <-h.done:
		return "", errHasherClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-result:
		return r.hash, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Verify reports whether password matches hash
func (h *Hasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Close stops the workers
func (h *Hasher) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

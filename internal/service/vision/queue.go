package vision

import "sync"

// Queue is a bounded-concurrency executor over an unbounded FIFO: at most
// maxConcurrent tasks run at once, protecting the CPU/GPU-bound vision
// worker from overload. Tasks are transient — they exist only in memory and
// are lost on restart, which is acceptable for best-effort monitoring.
//
// There is no priority, no preemption and no per-task timeout; the queue
// relies on tasks settling on their own.
type Queue struct {
	mu            sync.Mutex
	tasks         []func()
	active        int
	maxConcurrent int
}

func NewQueue(maxConcurrent int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Queue{maxConcurrent: maxConcurrent}
}

// Enqueue appends a task and triggers a drain. It never blocks.
func (q *Queue) Enqueue(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.drainLocked()
	q.mu.Unlock()
}

// drainLocked launches tasks while capacity remains. Each completed task —
// success or panic-free failure alike — decrements the active count and
// re-drains, so every enqueued task eventually runs.
func (q *Queue) drainLocked() {
	for q.active < q.maxConcurrent && len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.active++

		go func() {
			defer func() {
				q.mu.Lock()
				q.active--
				q.drainLocked()
				q.mu.Unlock()
			}()
			task()
		}()
	}
}

// Active returns the number of running tasks.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Pending returns the number of queued, not yet started tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

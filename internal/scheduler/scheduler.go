package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"mediavault/internal/metrics"
)

// Job описывает периодическую задачу сверки. Run возвращает число
// обработанных элементов
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// JobLocker не дает задаче выполняться параллельно в нескольких
// экземплярах сервиса. Реализуется locker.Locker
type JobLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, name, token string) error
}

// Scheduler запускает каждую задачу на собственном таймере в отдельной
// горутине. Тикер и вызов Run живут в одной горутине, поэтому повторный
// запуск не начинается, пока предыдущий не завершился. Сбой одной задачи
// не влияет на остальные
type Scheduler struct {
	jobs   []Job
	locker JobLocker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(lock JobLocker) *Scheduler {
	return &Scheduler{locker: lock}
}

// Register добавляет задачу. Вызывается до Start
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()

			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()

			log.Printf("[Scheduler] Job %s scheduled every %s", job.Name, job.Interval)

			for {
				select {
				case <-ticker.C:
					s.runJob(ctx, job)
				case <-ctx.Done():
					return
				}
			}
		}(job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if s.locker != nil {
		token, acquired, err := s.locker.TryLock(ctx, job.Name, job.Interval)
		if err != nil {
			log.Printf("[Scheduler] Failed to acquire lock for job %s: %v", job.Name, err)
			metrics.SweepRunsTotal.WithLabelValues(job.Name, "error").Inc()
			return
		}
		if !acquired {
			metrics.SweepSkippedLockedTotal.WithLabelValues(job.Name).Inc()
			return
		}
		defer func() {
			if err := s.locker.Unlock(ctx, job.Name, token); err != nil {
				log.Printf("[Scheduler] Failed to release lock for job %s: %v", job.Name, err)
			}
		}()
	}

	start := time.Now()
	processed, err := job.Run(ctx)
	metrics.SweepDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Printf("[Scheduler] Job %s failed: %v", job.Name, err)
		metrics.SweepRunsTotal.WithLabelValues(job.Name, "error").Inc()
		return
	}

	metrics.SweepRunsTotal.WithLabelValues(job.Name, "success").Inc()
	if processed > 0 {
		log.Printf("[Scheduler] Job %s processed %d items in %v", job.Name, processed, time.Since(start))
	}
}

// Stop останавливает таймеры и дожидается завершения текущих запусков
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

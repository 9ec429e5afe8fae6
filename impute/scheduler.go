// elImpute: a high-performance tool for imputing GBS genotypes.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/exascience/elimpute/blob/master/LICENSE.txt>.

package impute

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

type task struct {
	name string
	run  func() error
}

// Scheduler runs named tasks on a fixed pool of goroutines. A task
// that fails or panics is recorded and does not stop the others.
type Scheduler struct {
	tasks    chan task
	wait     sync.WaitGroup
	stopped  atomic.Bool
	mutex    sync.Mutex
	failures []error
}

// NewScheduler starts a pool of threads workers that accept up to
// capacity tasks without blocking.
func NewScheduler(threads, capacity int) *Scheduler {
	s := &Scheduler{tasks: make(chan task, capacity)}
	s.wait.Add(threads)
	for i := 0; i < threads; i++ {
		go s.work()
	}
	return s
}

func (s *Scheduler) work() {
	defer s.wait.Done()
	for t := range s.tasks {
		if s.stopped.Load() {
			continue
		}
		if err := s.runTask(t); err != nil {
			s.mutex.Lock()
			s.failures = append(s.failures, err)
			s.mutex.Unlock()
		}
	}
}

func (s *Scheduler) runTask(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %v panicked: %v\n%s", t.name, r, debug.Stack())
		}
	}()
	if err = t.run(); err != nil {
		err = fmt.Errorf("task %v: %w", t.name, err)
	}
	return err
}

// Submit enqueues a task.
func (s *Scheduler) Submit(name string, run func() error) {
	s.tasks <- task{name: name, run: run}
}

// Wait closes the queue and waits until all tasks are finished, or
// until the timeout expires. Tasks that have not started when the
// timeout expires are skipped. The result combines all task failures.
func (s *Scheduler) Wait(timeout time.Duration) error {
	close(s.tasks)
	done := make(chan struct{})
	go func() {
		s.wait.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.stopped.Store(true)
		return fmt.Errorf("tasks did not finish within %v", timeout)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return errors.Join(s.failures...)
}

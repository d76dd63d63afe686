package util

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

type queuedJob struct {
	id       int
	producer int
}

// TestBasicOperations tests push and receive with a single producer
func TestBasicOperations(t *testing.T) {
	q := NewLockFreeMPSC[queuedJob]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(&queuedJob{id: i}) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if val.id != i {
				t.Errorf("Expected %d, got %d", i, val.id)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", val)
	case <-time.After(10 * time.Millisecond):
	}

	if q.Push(nil) {
		t.Error("Pushing nil must fail")
	}
}

// TestConcurrentProducers verifies that no value is lost or duplicated
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[queuedJob]()

	const numProducers = 10
	const itemsPerProducer = 1000

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producer int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				if !q.Push(&queuedJob{id: i, producer: producer}) {
					t.Errorf("Producer %d failed to push item %d", producer, i)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	// close once all producers are done, the consumer drains the rest
	go func() {
		wg.Wait()
		q.Close()
	}()

	received := make(map[queuedJob]bool)
	lastPerProducer := make(map[int]int)
	for val := range q.Recv() {
		if received[*val] {
			t.Errorf("Duplicate item received: %v", *val)
		}
		received[*val] = true

		// values of one producer keep their order
		if last, ok := lastPerProducer[val.producer]; ok && val.id < last {
			t.Errorf("Producer %d: item %d after %d", val.producer, val.id, last)
		}
		lastPerProducer[val.producer] = val.id
	}
	q.Wait()

	if len(received) != numProducers*itemsPerProducer {
		t.Errorf("Expected %d items, got %d", numProducers*itemsPerProducer, len(received))
	}
}

// TestCloseQueue verifies that values pushed before Close are still delivered
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[queuedJob]()

	for i := 0; i < 5; i++ {
		q.Push(&queuedJob{id: i})
	}
	q.Close()

	if q.Push(&queuedJob{id: 100}) {
		t.Error("Should not be able to push after queue is closed")
	}
	if !q.IsClosed() {
		t.Error("Queue should report closed")
	}

	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if val.id != i {
				t.Errorf("Expected %d, got %d", i, val.id)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	if _, ok := <-q.Recv(); ok {
		t.Error("Channel should be closed but is still open")
	}
	q.Wait()
}

// TestCloseIdleQueue verifies that an idle consumer wakes up on Close
func TestCloseIdleQueue(t *testing.T) {
	q := NewLockFreeMPSC[queuedJob]()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		q.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consumer did not stop after Close")
	}
}

// BenchmarkMultiProducer benchmarks the queue with multiple producers
func BenchmarkMultiProducer(b *testing.B) {
	q := NewLockFreeMPSC[queuedJob]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(&queuedJob{id: i})
			i++
		}
	})
}

package telegram

import (
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	buyerQueueSize    = 16
	workerIdleTimeout = time.Minute
)

// Dispatcher fans updates out to one worker goroutine per buyer, so a
// single buyer's session is only ever touched by one handler at a time
// (even when the buyer talks to the bot from several chats) while
// separate buyers proceed concurrently. Workers tear down after a quiet
// period so a long-running process does not keep one goroutine per
// buyer ever seen.
type Dispatcher struct {
	mu        sync.Mutex
	queues    map[int64]chan tgbotapi.Update
	wg        sync.WaitGroup
	closed    bool
	handle    func(tgbotapi.Update)
	idleAfter time.Duration
	logf      func(string, ...any)
}

// NewDispatcher constructs a dispatcher that delivers updates to handle.
func NewDispatcher(handle func(tgbotapi.Update), logf func(string, ...any)) *Dispatcher {
	if logf == nil {
		logf = log.Printf
	}
	return &Dispatcher{
		queues:    make(map[int64]chan tgbotapi.Update),
		handle:    handle,
		idleAfter: workerIdleTimeout,
		logf:      logf,
	}
}

// Dispatch queues the update for its buyer's worker. Updates for a
// saturated buyer are dropped rather than stalling the poll loop.
func (d *Dispatcher) Dispatch(buyerID int64, update tgbotapi.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	queue, ok := d.queues[buyerID]
	if !ok {
		queue = make(chan tgbotapi.Update, buyerQueueSize)
		d.queues[buyerID] = queue
		d.wg.Add(1)
		go d.drain(buyerID, queue)
	}

	select {
	case queue <- update:
	default:
		d.logf("dispatcher: dropping update for buyer %d, queue full", buyerID)
	}
}

// drain works one buyer's queue. Once the queue has been idle for a
// while the worker removes its map entry and exits; the next update for
// that buyer starts a fresh one.
func (d *Dispatcher) drain(buyerID int64, queue chan tgbotapi.Update) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleAfter)
	defer idle.Stop()

	for {
		select {
		case update, ok := <-queue:
			if !ok {
				return
			}
			d.handle(update)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(d.idleAfter)
		case <-idle.C:
			d.mu.Lock()
			if d.closed || len(queue) > 0 {
				d.mu.Unlock()
				idle.Reset(d.idleAfter)
				continue
			}
			delete(d.queues, buyerID)
			d.mu.Unlock()
			return
		}
	}
}

// Close stops accepting updates and waits for in-flight ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

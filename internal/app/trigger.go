package app

import (
	"log/slog"
	"sync"

	"go.aimuz.me/murmur/hotkey"
)

// trigger turns hotkey signals into session calls without blocking the
// keyboard hook. Presses run in order on one worker; each release hands the
// pipeline to its own goroutine so a new press is answered immediately.
type trigger struct {
	signals chan hotkey.Signal
	press   func()
	release func()

	once sync.Once
	quit chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

func newTrigger(press, release func()) *trigger {
	t := &trigger{
		signals: make(chan hotkey.Signal, 16),
		press:   press,
		release: release,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

// Press queues a press signal.
func (t *trigger) Press() { t.send(hotkey.Press) }

// Release queues a release signal.
func (t *trigger) Release() { t.send(hotkey.Release) }

func (t *trigger) send(sig hotkey.Signal) {
	select {
	case <-t.quit:
	case t.signals <- sig:
	default:
		slog.Warn("hotkey signal dropped", "signal", sig)
	}
}

func (t *trigger) run() {
	defer close(t.done)
	for {
		select {
		case <-t.quit:
			return
		case sig := <-t.signals:
			switch sig {
			case hotkey.Press:
				t.press()
			case hotkey.Release:
				t.wg.Go(t.release)
			}
		}
	}
}

// Close stops the worker and waits for running releases to finish.
func (t *trigger) Close() {
	t.once.Do(func() { close(t.quit) })
	<-t.done
	t.wg.Wait()
}

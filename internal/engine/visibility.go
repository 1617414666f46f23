package engine

import (
	"os"
	"os/signal"
	"syscall"
)

// Observer translates platform lifecycle signals into Events. It carries no
// business logic and no state beyond the subscription itself.
//
// In this client the platform signals are POSIX job control: SIGTSTP means
// the user pushed the session to the background, SIGCONT brings it back,
// and SIGHUP/SIGTERM are the unload path where only a synchronous
// checkpoint write can be relied on.
type Observer struct {
	C    chan Event
	sigs chan os.Signal
	done chan struct{}
}

// NewSignalObserver subscribes to job-control and termination signals and
// starts translating. Close must be called to release the subscription.
func NewSignalObserver() *Observer {
	o := &Observer{
		C:    make(chan Event, 4),
		sigs: make(chan os.Signal, 4),
		done: make(chan struct{}),
	}
	signal.Notify(o.sigs, syscall.SIGTSTP, syscall.SIGCONT, syscall.SIGHUP, syscall.SIGTERM)
	go o.translate()
	return o
}

func (o *Observer) translate() {
	for {
		select {
		case <-o.done:
			return
		case sig := <-o.sigs:
			switch sig {
			case syscall.SIGTSTP:
				o.emit(EventHidden)
			case syscall.SIGCONT:
				o.emit(EventVisible)
			case syscall.SIGHUP, syscall.SIGTERM:
				o.emit(EventPageHide)
			}
		}
	}
}

// emit drops events nobody is draining; a dying process must not block here.
func (o *Observer) emit(ev Event) {
	select {
	case o.C <- ev:
	default:
	}
}

// Close unsubscribes and stops the translation goroutine.
func (o *Observer) Close() {
	signal.Stop(o.sigs)
	close(o.done)
}

// Package signal runs the console's long-lived workers and stops them on
// SIGINT/SIGTERM.
package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
)

var onShutdown []func() error
var isInitialized = false
var exitCh chan os.Signal
var mtx = &sync.Mutex{}
var wg = &sync.WaitGroup{}
var one = &sync.Once{}
var stop = &sync.Once{}

func Init() {
	one.Do(func() {
		onShutdown = make([]func() error, 0, 16)
		isInitialized = true

		exitCh = make(chan os.Signal, 1) // buffered, so the notifier is never blocked
		signal.Notify(exitCh, os.Interrupt, syscall.SIGTERM)
		wg.Add(1)
		go callOnShutdown()
	})
}

// Run starts fn in a goroutine that Wait waits for.
func Run(fn func()) {
	if !isInitialized {
		return
	}
	wg.Add(1)
	go (func() {
		defer wg.Done()
		fn()
	})()
}

// OnShutdown registers fn to run once a stop signal arrives. Hooks run in
// reverse registration order, so later components stop before the ones they use.
func OnShutdown(fn func() error) {
	if !isInitialized {
		return
	}

	mtx.Lock()
	defer mtx.Unlock()

	onShutdown = append(onShutdown, fn)
}

func Shutdown() {
	stop.Do(func() {
		exitCh <- os.Interrupt
	})
}

// Wait blocks until every Run function and every shutdown hook returned.
func Wait() {
	wg.Wait()
}

func callOnShutdown() {
	defer wg.Done()
	log.Info("[Signal] Waiting stop signal")

	<-exitCh
	mtx.Lock()
	defer mtx.Unlock()

	log.Info("[Signal] Stop signal received, shutdown initiated")
	for i := len(onShutdown) - 1; i >= 0; i-- {
		if err := onShutdown[i](); err != nil {
			log.Errorf("[Signal] shutdown hook failed: %s", err)
		}
	}
}

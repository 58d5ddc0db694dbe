package proxy

import (
	"context"
	"io"
	"net/http"
	"time"
)

// streamResponse relays body to w in chunks, enforcing idleTimeout between
// reads and aborting as soon as either the upstream request context or the
// original client context is done. Grounded on the teacher's
// streamResponse in internal/adapter/proxy/proxy.go, which watches both a
// client and an upstream context concurrently and tears down the copy loop
// the instant either cancels.
func streamResponse(upstreamCtx, clientCtx context.Context, w http.ResponseWriter, body io.Reader, idleTimeout time.Duration, bufSize int) (int64, error) {
	flusher, _ := w.(http.Flusher)

	done := make(chan struct{})
	defer close(done)

	abort := make(chan error, 1)
	go func() {
		select {
		case <-upstreamCtx.Done():
			abort <- upstreamCtx.Err()
		case <-clientCtx.Done():
			abort <- clientCtx.Err()
		case <-done:
		}
	}()

	buf := make([]byte, bufSize)
	var total int64

	type readResult struct {
		n   int
		err error
	}

	for {
		readCh := make(chan readResult, 1)
		go func() {
			n, err := body.Read(buf)
			readCh <- readResult{n, err}
		}()

		var idleTimer <-chan time.Time
		if idleTimeout > 0 {
			t := time.NewTimer(idleTimeout)
			defer t.Stop()
			idleTimer = t.C
		}

		select {
		case res := <-readCh:
			if res.n > 0 {
				if _, werr := w.Write(buf[:res.n]); werr != nil {
					return total, werr
				}
				total += int64(res.n)
				if flusher != nil {
					flusher.Flush()
				}
			}
			if res.err == io.EOF {
				return total, nil
			}
			if res.err != nil {
				return total, res.err
			}
		case <-idleTimer:
			return total, context.DeadlineExceeded
		case err := <-abort:
			return total, err
		}
	}
}

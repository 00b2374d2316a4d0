package mcp

import (
	"context"
	"os"
	"time"

	"perfomatic/internal/logging"
)

// WatchParent calls cancelFn when the parent process goes away (the MCP host
// exited or restarted), so orphaned servers do not accumulate.
//
// It must not read stdin: the SDK's StdioTransport owns it and any byte read
// here corrupts the JSON-RPC stream.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, interval time.Duration, cancelFn context.CancelFunc) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ppid := os.Getppid()
	log := logging.New("mcp")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					log.Warn("parent process died, shutting down", "ppid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}

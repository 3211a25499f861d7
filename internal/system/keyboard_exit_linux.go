//go:build linux

package system

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// StartExitOnKey watches evdev devices under /dev/input/event* and invokes
// onExit once when key is pressed.
//
// It is best-effort: if no input devices are available, it logs and returns.
func StartExitOnKey(ctx context.Context, l logger, key uint16, onExit func()) {
	if onExit == nil {
		return
	}

	// input_event = timeval + u16 type + u16 code + s32 value.
	tvSize := binary.Size(unix.Timeval{})
	eventSize := tvSize + 2 + 2 + 4
	if tvSize <= 0 {
		tvSize, eventSize = 16, 24
	}

	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(paths) == 0 {
		if l != nil {
			l.Infof("input", "no evdev devices found for key exit")
		}
		return
	}

	var once sync.Once
	trigger := func() {
		once.Do(func() {
			if l != nil {
				l.Infof("input", "exit key %d pressed", key)
			}
			onExit()
		})
	}

	for _, p := range paths {
		go watchDevice(ctx, p, tvSize, eventSize, key, trigger)
	}
}

func watchDevice(ctx context.Context, path string, tvSize, eventSize int, key uint16, trigger func()) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), path)
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pollFds, 250); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if keyPressed(buf[:n], tvSize, eventSize, key) {
			trigger()
			time.Sleep(50 * time.Millisecond)
			return
		}
	}
}

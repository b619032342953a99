package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// HeldError is returned when another process holds the session lock.
type HeldError struct {
	Holder Info
	Path   string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("session lock held by PID %d since %s (%s)", e.Holder.PID, e.Holder.Since.Format(time.RFC3339), e.Path)
}

// Info describes the process that wrote the lock file.
type Info struct {
	PID   int
	Since time.Time
}

// Lock is an acquired flock on a session directory's LOCK file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking lock on dir/LOCK and records the
// current PID in it. Returns *HeldError if another process holds it.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, fileName)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder, _ := readInfo(path)
		_ = f.Close()
		return nil, &HeldError{Holder: holder, Path: path}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: path}, nil
}

// Holder reports who holds the lock on dir. ok is false when the lock is free.
func Holder(dir string) (info Info, ok bool, err error) {
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if os.IsNotExist(err) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, err
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return Info{}, false, nil
	}
	info, err = readInfo(path)
	return info, true, err
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before close so no stale file outlives the holder.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func readInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "time":
			info.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info, nil
}

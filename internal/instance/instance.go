// Package instance guards a config file against concurrent serve processes
// and publishes where the running one listens.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// ErrAlreadyRunning is returned when another process holds the instance lock
var ErrAlreadyRunning = errors.New("another instance is already serving this config")

// Info describes a running serve process. It is written next to the config
// file while the lock is held.
type Info struct {
	PID       int       `yaml:"pid"`
	Listen    string    `yaml:"listen"`
	Config    string    `yaml:"config"`
	StartedAt time.Time `yaml:"started_at"`
}

// Instance is a held lock on a config file.
type Instance struct {
	lock     *flock.Flock
	infoPath string
}

// LockPath returns the lock file used for configPath.
func LockPath(configPath string) string {
	return configPath + ".lock"
}

// InfoPath returns the runtime info file used for configPath.
func InfoPath(configPath string) string {
	return configPath + ".run"
}

// Acquire takes the instance lock for configPath without blocking and
// records info. It fails with ErrAlreadyRunning if another process holds it.
func Acquire(configPath string, info Info) (*Instance, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	lock := flock.New(LockPath(abs))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrAlreadyRunning, LockPath(abs))
	}

	inst := &Instance{lock: lock, infoPath: InfoPath(abs)}

	if info.PID == 0 {
		info.PID = os.Getpid()
	}
	if info.Config == "" {
		info.Config = abs
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	if err := writeInfo(inst.infoPath, &info); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return inst, nil
}

// Release removes the info file and drops the lock.
func (i *Instance) Release() error {
	_ = os.Remove(i.infoPath)
	_ = os.Remove(i.lock.Path())
	if err := i.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release instance lock: %w", err)
	}
	return nil
}

// ReadInfo loads the info file for configPath. It returns an error wrapping
// os.ErrNotExist when nothing is serving that config.
func ReadInfo(configPath string) (*Info, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(InfoPath(abs))
	if err != nil {
		return nil, err
	}

	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	return &info, nil
}

func writeInfo(path string, info *Info) error {
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal yaml: %w", err)
	}

	// Unique temp name so concurrent writers never share one
	tempFile := fmt.Sprintf("%s.%d.%d.tmp", path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := atomicRename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

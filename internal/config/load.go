package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const fileWriteSettleDelay = 150 * time.Millisecond
const reloadDebounce = 500 * time.Millisecond

var (
	reloadMu   sync.Mutex
	lastReload time.Time
)

// Load reads configPath into a validated File. If onChange is non-nil,
// the file is watched and onChange is invoked (debounced) with the
// freshly reloaded, re-validated File whenever it changes on disk.
//
// Grounded on the teacher's internal/config.Load: viper.WatchConfig plus
// a fsnotify callback with a rapid-fire debounce and a short settle
// delay for editors that write in two passes.
func Load(configPath string, onChange func(*File)) (*File, error) {
	file := Default()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RELAYLB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}
	if err := v.Unmarshal(file); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", configPath, err)
	}
	if err := Validate(file); err != nil {
		return nil, err
	}

	if onChange != nil {
		v.WatchConfig()
		v.OnConfigChange(func(_ fsnotify.Event) {
			reloadMu.Lock()
			defer reloadMu.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < reloadDebounce {
				return
			}
			lastReload = now

			time.Sleep(fileWriteSettleDelay)

			reloaded := Default()
			if err := v.Unmarshal(reloaded); err != nil {
				return
			}
			if err := Validate(reloaded); err != nil {
				return
			}
			onChange(reloaded)
		})
	}

	return file, nil
}

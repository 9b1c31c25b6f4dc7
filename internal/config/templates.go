package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# cryptolens configuration

[api]
# Dashboard backend serving /cryptos and /cryptos/{id}/history
base_url = "http://127.0.0.1:5001/api"
# Client-side rate limit
requests_per_second = 1.0
burst = 5
timeout = "15s"
# Attempts per request, including the first
max_attempts = 3
# Consecutive failed requests before the API is skipped for breaker_cooldown
breaker_threshold = 5
breaker_cooldown = "30s"

[analysis]
# Window used when no period is given: 24h, 7d, 30d, 90d, 1y
default_period = "30d"
sma_period = 20
ema_period = 20
rsi_period = 14
macd_fast = 12
macd_slow = 26
bollinger_period = 20
bollinger_stddev = 2.0
# Indicators computed in parallel by "analyze --all"
workers = 4

[store]
# SQLite cache. Defaults to cryptolens.db in the config directory.
# path = "/var/lib/cryptolens/cryptolens.db"

[server]
addr = "127.0.0.1:5001"
read_timeout = "10s"
write_timeout = "30s"
# Access-Control-Allow-Origin; empty disables CORS
allow_origin = "*"

[sync]
# Cron schedule with seconds used by "serve"; empty disables scheduled sync
schedule = "0 0 */6 * * *"
# Cached data older than this is reported as stale
stale_after = "24h"
# Concurrent history downloads
workers = 4
# Coins whose history a full sync refreshes (0 = all)
top_n = 20

[log]
# debug, info, warn, error
level = "info"
file = true
# Defaults to logs/cryptolens.log in the config directory.
# file_path = "/var/log/cryptolens/cryptolens.log"
max_size = 50
max_backups = 5
max_age = 30

[ui]
color_enabled = true
date_format = "2006-01-02"
# Rows per page in listings
page_size = 20
`

// Template returns the default config file contents.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName)
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kimchiscan/kimchiscan/internal/models"
)

// JobSchedules holds the cron expressions (6-field, seconds-granular)
// for the background jobs.
type JobSchedules struct {
	Prices  string `yaml:"prices"`
	Fx      string `yaml:"fx"`
	Catalog string `yaml:"catalog"`
	Kimchi  string `yaml:"kimchi"`
}

// KimchiJob fixes the tuple the hourly premium snapshot records.
type KimchiJob struct {
	Symbol       string `yaml:"symbol"`
	FromExchange string `yaml:"from_exchange"`
	ToExchange   string `yaml:"to_exchange"`
	FxSource     string `yaml:"fx_source"`
}

// Config is the scheduler configuration. A YAML file overrides
// individual fields; everything else keeps its default.
type Config struct {
	Jobs   JobSchedules `yaml:"jobs"`
	Kimchi KimchiJob    `yaml:"kimchi_snapshot"`
}

// DefaultConfig returns the built-in schedule: prices every two
// seconds, FX every ten, catalog every ten minutes, and an ETH premium
// snapshot at the top of every minute.
func DefaultConfig() Config {
	return Config{
		Jobs: JobSchedules{
			Prices:  "*/2 * * * * *",
			Fx:      "*/10 * * * * *",
			Catalog: "0 */10 * * * *",
			Kimchi:  "0 * * * * *",
		},
		Kimchi: KimchiJob{
			Symbol:       "ETH",
			FromExchange: models.ExchangeBinance,
			ToExchange:   models.ExchangeUpbit,
			FxSource:     string(models.FxUsdKrw),
		},
	}
}

// LoadConfig reads a YAML override file on top of the defaults. An
// empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading scheduler config: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing scheduler config: %w", err)
	}

	return cfg, nil
}

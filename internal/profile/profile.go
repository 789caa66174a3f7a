package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the reminder service.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Data is the data directory
	Data string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// DSN points to where shuvi stores its own data
	DSN string
	// BotName is the display name the bot uses in conversation texts
	BotName string
	// CommandPrefix introduces a command message, e.g. "." for ".remindme"
	CommandPrefix string
	// DefaultTimezone is the IANA zone offered to users who have not picked one yet
	DefaultTimezone string
	// OperatorChannel receives error reports; empty disables operator reporting
	OperatorChannel string
	// QuotesFile overrides the embedded localized text store
	QuotesFile string
	// Version is the current version of the service
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks the profile and fills in derivable defaults.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}
	if p.BotName == "" {
		p.BotName = "Shuvi"
	}
	if p.CommandPrefix == "" {
		p.CommandPrefix = "."
	}

	if p.DefaultTimezone == "" {
		p.DefaultTimezone = "Europe/Berlin"
	}
	if _, err := time.LoadLocation(p.DefaultTimezone); err != nil {
		return errors.Wrapf(err, "invalid default timezone %q", p.DefaultTimezone)
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	switch p.Driver {
	case "", "sqlite":
		p.Driver = "sqlite"
		if p.DSN == "" {
			dbFile := fmt.Sprintf("shuvi_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}

	return nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if a relative path is supplied
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve data directory")
		}
		dataDir = absDir
	}
	dataDir = filepath.Clean(dataDir)

	if fi, err := os.Stat(dataDir); err != nil || !fi.IsDir() {
		return "", errors.Errorf("data directory %q does not exist", dataDir)
	}
	return dataDir, nil
}

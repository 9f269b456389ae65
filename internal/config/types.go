package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	TNC  TNCConfig  `json:"tnc"`
	APRS APRSConfig `json:"aprs"`

	// Bulletins and Status are optional; a bot without them just answers
	// queries.
	Bulletins *BulletinsConfig `json:"bulletins,omitempty"`
	Status    *StatusConfig    `json:"status,omitempty"`

	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`
}

// TNCConfig points at the TNC's TCP KISS interface.
type TNCConfig struct {
	Addr string `json:"addr"`
	Port int    `json:"port"`
}

type APRSConfig struct {
	// Callsign including SSID, e.g. "N0CALL-10".
	Callsign string `json:"callsign"`
	// Path is the digipeater path, e.g. "WIDE1-1,WIDE2-2".
	Path string `json:"path"`
}

// BulletinsConfig holds both bulletin flavors.
//
// Static bulletins repeat every SendFreq on a monotonic timer. Rule
// bulletins fire when their cron expression matches the current wall-clock
// minute. A static bulletin wins over a rule bulletin with the same id
// when both fire in the same pass.
type BulletinsConfig struct {
	// SendFreq is a Go duration string. Default "10m".
	SendFreq string `json:"send_freq,omitempty"`

	// Static maps bulletin id (e.g. "BLN0") to its text.
	Static map[string]string `json:"static,omitempty"`

	Rules []RuleBulletin `json:"rules,omitempty"`
}

type RuleBulletin struct {
	ID   string `json:"id"`
	Rule string `json:"rule"`
	Text string `json:"text"`
}

// StatusConfig controls the periodic system-status beacon. Host fields are
// optional; empty ones are skipped by the status check.
type StatusConfig struct {
	// SendFreq is a Go duration string. Default "10m".
	SendFreq string `json:"send_freq,omitempty"`

	EthHost  string `json:"eth_host,omitempty"`
	InetHost string `json:"inet_host,omitempty"`
	DNSHost  string `json:"dns_host,omitempty"`
	VPNHost  string `json:"vpn_host,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"`
	File    string `json:"file,omitempty"`
}

// ConsoleEnabled defaults to true when the field is omitted.
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

// Validate checks required fields and duration syntax. Rule expressions are
// validated separately through the manager's validator hook so this package
// stays free of the cron dependency.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.TNC.Addr) == "" {
		return errors.New("tnc.addr is required")
	}
	if c.TNC.Port <= 0 || c.TNC.Port > 65535 {
		return fmt.Errorf("tnc.port %d out of range", c.TNC.Port)
	}
	if strings.TrimSpace(c.APRS.Callsign) == "" {
		return errors.New("aprs.callsign is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if c.Bulletins != nil {
		if _, err := ParseDurationField("bulletins.send_freq", c.Bulletins.SendFreq); err != nil {
			return err
		}
		for i, r := range c.Bulletins.Rules {
			if strings.TrimSpace(r.ID) == "" {
				return fmt.Errorf("bulletins.rules[%d]: id is required", i)
			}
			if strings.TrimSpace(r.Rule) == "" {
				return fmt.Errorf("bulletins.rules[%d]: rule is required", i)
			}
		}
	}
	if c.Status != nil {
		if _, err := ParseDurationField("status.send_freq", c.Status.SendFreq); err != nil {
			return err
		}
	}
	return nil
}

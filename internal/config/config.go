// Package config loads the process configuration from command-line
// flags, an optional JSON configuration file, and environment
// variables. It is read once at startup; the resulting value is
// passed into the server at construction time and never mutated.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// Options holds the configuration values for the service.
type Options struct {
	// Listen is the HTTP listen address (ip:port).
	Listen string `json:"listen"`

	// DataPath is the root directory for object containers.
	DataPath string `json:"data_path"`

	// Backend selects the object store: "local" (default) or "s3".
	Backend string `json:"backend"`

	// MaxUploadBytes caps the total upload request size. Zero means
	// no limit.
	MaxUploadBytes int64 `json:"max_upload_bytes"`

	// AuditLog is the path of the SQLite audit database. Empty
	// disables auditing.
	AuditLog string `json:"audit_log"`

	// TLSCert and TLSKey enable the HTTPS listener when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// EmailSender is the From address for admin notifications.
	EmailSender string `json:"email_sender"`

	Admin struct {
		SendEmail bool   `json:"send_email"`
		Name      string `json:"name"`
		Email     string `json:"email"`
	} `json:"admin"`

	SMTP struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		User     string `json:"user"`
		Password string `json:"password"`
	} `json:"smtp"`

	S3 struct {
		Endpoint  string `json:"endpoint"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
		Bucket    string `json:"bucket"`
		Secure    bool   `json:"secure"`
	} `json:"s3"`

	// Config is the path to the JSON configuration file.
	Config string `json:"-"`
}

var options = &Options{}

func init() {
	flag.StringVar(&options.Listen, "listen", ":8080", "HTTP listen address")
	flag.StringVar(&options.DataPath, "data-dir", "./data", "directory to store object containers")
	flag.StringVar(&options.Config, "config", "", "path to config file")
	flag.StringVar(&options.Config, "c", "", "path to config file (shorthand)")
}

// Parse parses command-line flags, overlays the JSON configuration
// file when present, and applies environment overrides. Flag values
// for listen address and data directory act as defaults that the
// file may override; environment variables win over both.
func Parse() (*Options, error) {
	flag.Parse()

	if configPath := os.Getenv("HUSHD_CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		data, err := os.ReadFile(options.Config)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, options); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if listen := os.Getenv("HUSHD_LISTEN"); listen != "" {
		options.Listen = listen
	}
	if dataPath := os.Getenv("HUSHD_DATA_PATH"); dataPath != "" {
		options.DataPath = dataPath
	}

	return options, nil
}

package model

import "github.com/google/uuid"

// EndpointConfig is the tagged-variant config bag for an Endpoint. Only the
// fields relevant to Kind are populated; the rest stay at zero value. This
// mirrors the data model's guidance to use typed structures instead of a
// generic map so callers can't read a field that doesn't apply to the kind.
type EndpointConfig struct {
	// LOCAL
	BasePath string `json:"base_path,omitempty"`

	// S3
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`

	// SMB
	Host     string `json:"host,omitempty"`
	Share    string `json:"share,omitempty"`
	Domain   string `json:"domain,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// SFTP
	Port           int    `json:"port,omitempty"`
	KeyFile        string `json:"key_file,omitempty"`
	KnownHostsFile string `json:"known_hosts_file,omitempty"`
}

// Endpoint is a named remote (or local) storage location that transfers read
// from or write to.
type Endpoint struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Kind            EndpointKind   `json:"kind"`
	Config          EndpointConfig `json:"config"`
	ConcurrentLimit int            `json:"concurrent_limit"`
}

// Package gcp holds the credential wiring shared by the Google Cloud clients.
package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/vendeo/vendeo-backend/pkg/config"
)

// ClientOptions picks inline JSON credentials, then a credentials file, and
// falls back to application default credentials when neither is set.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ApplicationCredentials))
	}
	return opts
}

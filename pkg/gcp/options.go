package gcp

import (
	"strings"

	"github.com/markit/markit-server/pkg/config"
	"google.golang.org/api/option"
)

// ClientOptions picks explicit credentials when configured. Inline JSON wins
// over a credentials file; with neither, ADC applies.
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

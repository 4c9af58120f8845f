package secrets

import "context"

// Provider abstracts a secret store. Secrets are JSON maps of string keys to
// string values.
type Provider interface {
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}

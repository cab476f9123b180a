package instance

import (
	"os"

	"github.com/vendeo/vendeo-backend/pkg/env"
)

// EnvWorkerID overrides the derived worker identity.
const EnvWorkerID = "VENDEO_WORKER_ID"

const fallbackID = "worker-0"

// GetID identifies this process among the replicas of a worker: the
// configured id, else the hostname.
func GetID() string {
	if id := env.Get(EnvWorkerID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}

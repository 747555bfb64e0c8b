package instance

import (
	"os"

	"github.com/angelmondragon/mealshare-backend/pkg/env"
)

const defaultID = "worker-0"

// GetID identifies this replica in worker logs: MEALSHARE_WORKER_ID, then
// the pod name injected by the deployment, then the hostname.
func GetID() string {
	if id := env.First("", "MEALSHARE_WORKER_ID", "POD_NAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}

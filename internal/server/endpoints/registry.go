package endpoints

import (
	"github.com/carepill/pillscan/internal/api"
	"github.com/carepill/pillscan/internal/config"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	ConfigManager *config.Manager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Scan endpoint
		&ScanEndpoint{ConfigManager: cfg.ConfigManager},

		// Medication list endpoints
		&ListMedicationsEndpoint{},
		&CompleteMedicationEndpoint{},
		&DeleteMedicationEndpoint{},

		// Catalog endpoints
		&CatalogSearchEndpoint{},
	}
}

package db

import (
	"flag"
	"os"

	"github.com/notekeep/notekeep-backend/models"
)

// Database interface: what the push subsystem needs from the backing
// store. Slightly more limited than CRUD for all the schemas. The
// registry exclusively owns subscription rows; callers may flip the
// active flag through QuarantineSubscriptions but never delete rows.
type Database interface {
	// Upserts a subscription, keyed by its unique endpoint. Re-subscribing
	// an existing endpoint rotates the keys and reactivates the row.
	PutSubscription(models.Subscription) (models.Subscription, error)
	// Retrieves subscriptions with active = true, in an order that is
	// stable within one call. ownerID 0 means all owners.
	ActiveSubscriptions(ownerID int64) ([]models.Subscription, error)
	// Marks the given subscriptions inactive in one atomic set-based
	// update. Unknown ids are skipped, not an error. Returns the number
	// of rows updated.
	QuarantineSubscriptions(ids []int64) (int64, error)
	// Retrieves the content items with a non-empty announceable summary.
	AnnounceableContent() ([]models.ContentItem, error)
	ClearTables() error
}

// Config is a configuration struct for a Database.
type Config struct {
	Port       string
	DbHost     string
	DbName     string
	DbUsername string
	DbPass     string
}

// Default configuration values. Can be overwritten by env vars of the same name.
var configDefaults = map[string]string{
	"PORT":         "8080",
	"DB_HOST":      "localhost",
	"DB_NAME":      "notekeep",
	"DB_USERNAME":  "postgres",
	"DB_PASSWORD":  "postgres",
	"TEST_DB_NAME": "notekeep_test",
}

func getEnvOrDefault(varName string) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		envVar = configDefaults[varName]
	}
	return envVar
}

// LoadEnvironmentVariables loads relevant environment variables into a
// Config object.
func LoadEnvironmentVariables() (Config, error) {
	config := Config{
		Port:       getEnvOrDefault("PORT"),
		DbHost:     getEnvOrDefault("DB_HOST"),
		DbName:     getEnvOrDefault("DB_NAME"),
		DbUsername: getEnvOrDefault("DB_USERNAME"),
		DbPass:     getEnvOrDefault("DB_PASSWORD"),
	}
	if flag.Lookup("test.v") != nil {
		// Avoid accidentally wiping the default db during tests.
		config.DbName = getEnvOrDefault("TEST_DB_NAME")
	}
	return config, nil
}

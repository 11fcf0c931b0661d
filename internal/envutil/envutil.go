package envutil

import (
	"os"
	"strings"
)

// EnvVar names the deployment environment
const EnvVar = "RIOT_FRONT_ENV"

// IsDev reports whether the service runs in a development environment.
// Development relaxes the https base URL and Secure cookie requirements so
// the service can be reached on localhost.
func IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvVar))) {
	case "dev", "development", "local":
		return true
	}
	return false
}

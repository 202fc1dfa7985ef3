package localstore

import (
	"fmt"
	"os"
)

// ProfileEnvVar selects the local profile when no explicit one is given.
const ProfileEnvVar = "CHRONOQUEST_PROFILE"

// ResolveProfile picks the profile to use.
// Priority: explicit > CHRONOQUEST_PROFILE env > "default".
func ResolveProfile(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateProfileID(explicit); err != nil {
			return "", fmt.Errorf("invalid profile %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv(ProfileEnvVar); env != "" {
		if err := ValidateProfileID(env); err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", ProfileEnvVar, env, err)
		}
		return env, nil
	}

	return DefaultProfile, nil
}

// Package domain contains entities without logic, just meta-data and validation.
package domain

type NoiseBoxID string

const MaxNoiseBoxIDLen = 20

// IsValidNoiseBoxID reports whether id can name a noise-box:
// 20 characters or less, letters and numbers only, no spaces.
func IsValidNoiseBoxID(id string) bool {
	if len(id) == 0 || len(id) > MaxNoiseBoxIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

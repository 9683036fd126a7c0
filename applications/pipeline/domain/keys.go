package domain

import "strings"

var allowedExtensions = []string{".jpg", ".jpeg", ".png"}

// IsAllowedImage reports whether the key carries a recognized image
// extension. The check is case-insensitive.
func IsAllowedImage(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// MapKey converts an input object key to its metadata sidecar key:
// incoming/<path>/file.jpg -> metadata/<path>/file.jpg.json.
// Keys outside the input prefix are mapped as-is under the output prefix.
func MapKey(inputKey, inputPrefix, outputPrefix string) string {
	rel := inputKey
	if strings.HasPrefix(inputKey, inputPrefix) {
		rel = inputKey[len(inputPrefix):]
	}

	return outputPrefix + rel + ".json"
}

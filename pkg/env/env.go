// Package env reads individual environment variables outside the main
// envconfig pass, used for platform-injected values such as PORT.
package env

import "os"

// Get returns the variable's value, or fallback when unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

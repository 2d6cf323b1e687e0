package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kjstillabower/weather-cache-service/internal/models"
)

const dateLayout = "2006-01-02"

// Key builds the cache key for op. City is used exactly as given; day contributes
// only its calendar date in its own location. extra carries operation-specific
// discriminators such as the normalized elements list.
//
// Format: "<op>:<hex sha1 of city|date[|extra...]>".
func Key(op models.Operation, city string, day time.Time, extra ...string) string {
	parts := make([]string, 0, 2+len(extra))
	parts = append(parts, city, day.Format(dateLayout))
	parts = append(parts, extra...)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return string(op) + ":" + hex.EncodeToString(sum[:])
}

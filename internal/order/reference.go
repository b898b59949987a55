package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

const referencePrefix = "MS"

// NewReference builds a human-readable order reference such as
// MS-250315-9F2C41AB: the order date plus eight random hex digits.
func NewReference(now time.Time) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate order reference: %w", err)
	}
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", referencePrefix, now.UTC().Format("060102"), suffix), nil
}

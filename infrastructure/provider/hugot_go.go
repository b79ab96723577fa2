//go:build !ORT

package provider

import (
	"fmt"

	"github.com/knights-analytics/hugot"
)

// newHugotSession uses the pure Go backend; modelDir only labels errors.
func newHugotSession(modelDir string) (*hugot.Session, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("go session for %s: %w", modelDir, err)
	}
	return session, nil
}

package root

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnit_ExitStatus(t *testing.T) {
	noVenues := &statusError{status: exitNoVenues, message: "No venues found on index page.", err: errors.New("empty")}

	assert.Equal(t, 0, ExitStatus(nil))
	assert.Equal(t, 2, ExitStatus(noVenues))
	assert.Equal(t, 2, ExitStatus(fmt.Errorf("scrape: %w", noVenues)))
	assert.Equal(t, 1, ExitStatus(errors.New("boom")))
}

func TestUnit_Diagnostic(t *testing.T) {
	noVenues := &statusError{status: exitNoVenues, message: "No venues found on index page."}

	assert.Equal(t, "No venues found on index page.", Diagnostic(noVenues))
	assert.Equal(t, "error: boom", Diagnostic(errors.New("boom")))
}

package printers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateYesNo(t *testing.T) {
	for _, in := range []string{"y", "n", "Y", " N "} {
		assert.NoError(t, validateYesNo(in), in)
	}
	for _, in := range []string{"", "yes", "x"} {
		assert.Error(t, validateYesNo(in), in)
	}
}

func TestPrintersImplementsIPrinters(t *testing.T) {
	var _ IPrinters = NewPrinters()
}

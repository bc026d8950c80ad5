package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version())
	assert.Equal(t, strings.TrimSpace(Version()), Version())
	assert.Equal(t, "SolarFlow/"+Version(), UserAgent())
}

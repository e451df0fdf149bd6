package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unfsd-go/unfsd/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestValidate_RejectsEmptyExportsFile(t *testing.T) {
	opts := config.Default()
	opts.ExportsFile = ""
	assert.Error(t, opts.Validate())
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	opts := config.Default()
	opts.NFSPort = 70000
	assert.Error(t, opts.Validate())
}

func TestUnprivileged_ZeroesBothPorts(t *testing.T) {
	opts := config.Default()
	opts.Unprivileged()
	assert.Zero(t, opts.NFSPort)
	assert.Zero(t, opts.MountPort)
}

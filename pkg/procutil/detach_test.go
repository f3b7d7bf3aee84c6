//go:build !windows

package procutil

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetach_NewSession(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	Detach(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setsid)
	require.NoError(t, cmd.Run())
}

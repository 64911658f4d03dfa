package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.True(t, strings.HasPrefix(Full(), Name+" "))
}

// TestAttachCobraVersionCommand prints full or short output.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"version"}, want: Full() + "\n"},
		{args: []string{"version", "--short"}, want: Short() + "\n"},
	} {
		root := &cobra.Command{Use: Name}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(tc.args)

		require.NoError(t, root.Execute())
		require.Equal(t, tc.want, out.String())
	}
}

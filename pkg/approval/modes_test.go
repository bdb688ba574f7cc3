package approval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIResolverApprovesOnYes(t *testing.T) {
	in := strings.NewReader("y\n")
	var out strings.Builder
	resolve := CLIResolver(in, &out)

	decision, err := resolve(t.Context(), Request{ToolName: "write_file", Reason: "writes a file"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
	assert.Contains(t, out.String(), "write_file")
}

func TestCLIResolverDeniesOnAnythingElse(t *testing.T) {
	in := strings.NewReader("nope\n")
	var out strings.Builder
	resolve := CLIResolver(in, &out)

	decision, err := resolve(t.Context(), Request{ToolName: "write_file"})
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, decision)
}

func TestCLIResolverAcceptsFullYes(t *testing.T) {
	in := strings.NewReader("YES\n")
	var out strings.Builder
	resolve := CLIResolver(in, &out)

	decision, err := resolve(t.Context(), Request{ToolName: "close_app"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestAutoApproveResolverAlwaysApproves(t *testing.T) {
	resolve := AutoApproveResolver()
	decision, err := resolve(t.Context(), Request{ToolName: "anything"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "approved", DecisionAllow.String())
	assert.Equal(t, "rejected", DecisionDeny.String())
}

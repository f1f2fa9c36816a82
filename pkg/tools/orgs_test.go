package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrgRegistrars_Isolated(t *testing.T) {
	exec := &recordingExecutor{}
	orgs := NewOrgRegistrars(exec, quietLogger(), nil)
	ctx := context.Background()

	_, ok := orgs.Lookup("org-1")
	assert.False(t, ok)

	assert.Equal(t, 1, orgs.For("org-1").RegisterRemote(ctx, descs("GMAIL_SEND_EMAIL"), OrgUser("org-1", "u-1")))
	assert.Same(t, orgs.For("org-1"), orgs.For("org-1"))

	// The same key is free in another org.
	assert.Equal(t, 1, orgs.For("org-2").RegisterRemote(ctx, descs("GMAIL_SEND_EMAIL"), OrgUser("org-2", "u-1")))
	assert.Equal(t, 1, orgs.For("org-2").UnregisterApps(ctx, []string{"gmail"}))

	r, ok := orgs.Lookup("org-1")
	require.True(t, ok)
	tool, ok := r.Registry().Get("gmail.send_email")
	require.True(t, ok)
	tool.Run(ctx, nil)

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "org-1:u-1", exec.calls[0].UserID)
}

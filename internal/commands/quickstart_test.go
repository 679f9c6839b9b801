package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickStart(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.run(t, NewQuickStartCmd())
	require.NoError(t, err)
	auth := data(t, resp)["auth"].(map[string]any)
	assert.Equal(t, "unauthenticated", auth["status"])
	assert.Contains(t, resp["summary"], "not logged in")
	assert.Equal(t, "slotbook auth login", resp["breadcrumbs"].([]any)[0].(map[string]any)["cmd"])

	env.login(t)
	resp, err = env.run(t, NewQuickStartCmd())
	require.NoError(t, err)
	assert.Contains(t, resp["summary"], "logged in as "+testEmail+", no business selected")

	biz, _, _ := env.seedBusiness(t)
	resp, err = env.run(t, NewQuickStartCmd())
	require.NoError(t, err)
	assert.Contains(t, resp["summary"], "@ business "+jsonID(biz.ID))
	assert.Equal(t, jsonID(biz.ID), data(t, resp)["context"].(map[string]any)["business_id"])
	assert.Equal(t, "UTC", data(t, resp)["context"].(map[string]any)["timezone"])
}

func TestQuickStartMakesNoRequests(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.api.Expire()

	_, err := env.run(t, NewQuickStartCmd())
	require.NoError(t, err)
	assert.Zero(t, env.api.RefreshCalls())
}

func TestCommandsCatalog(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.run(t, NewCommandsCmd())
	require.NoError(t, err)
	categories := list(t, resp)
	require.Len(t, categories, 4)
	assert.Equal(t, "Bookings", categories[0].(map[string]any)["name"])
	assert.Contains(t, CatalogCommandNames(), "appointments")
}

func TestBuildCatalogReadsRegisteredCommands(t *testing.T) {
	root := &cobra.Command{Use: "slotbook"}
	root.AddCommand(NewStaffCmd(), NewVersionCmd())

	cats := buildCatalog(root)
	require.Len(t, cats, 4)

	business := cats[1].Commands
	assert.Equal(t, "business", business[0].Name)
	assert.Empty(t, business[0].Description, "unregistered commands keep only their name")

	staff := business[1]
	assert.Equal(t, "staff", staff.Name)
	assert.Equal(t, "business", staff.Category)
	assert.NotEmpty(t, staff.Description)
	assert.Contains(t, staff.Actions, "add")
	assert.Contains(t, staff.Actions, "remove")
}

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

func TestStaffList(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, _, _ := env.seedBusiness(t)
	env.api.SeedStaff(models.Staff{Business: biz.ID, FirstName: "Ines", Role: "stylist"})
	other := env.api.SeedBusiness(models.Business{Name: "Elsewhere"})
	env.api.SeedStaff(models.Staff{Business: other.ID, FirstName: "Nobody"})

	resp, err := env.run(t, NewStaffCmd())
	require.NoError(t, err)
	assert.Equal(t, "2 staff members", resp["summary"])
	assert.Len(t, list(t, resp), 2)
}

func TestStaffAddWithServices(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, svc, _ := env.seedBusiness(t)

	resp, err := env.run(t, NewStaffCmd(), "add",
		"--first-name", "Ada", "--last-name", "Lovelace", "--role", "stylist",
		"--services", jsonID(svc.ID))
	require.NoError(t, err)

	st := data(t, resp)
	assert.Equal(t, "Ada", st["first_name"])
	assert.Equal(t, float64(biz.ID), st["business"])
	assert.Equal(t, []any{float64(svc.ID)}, st["services"])
	assert.Contains(t, resp["summary"], "Added #")
	assert.Contains(t, resp["summary"], "Ada Lovelace (stylist)")
}

func TestStaffAddValidation(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.seedBusiness(t)

	_, err := env.run(t, NewStaffCmd(), "add", "--role", "stylist")
	require.Error(t, err)
	assert.Equal(t, output.CodeValidation, errCode(err))
	assert.Zero(t, env.api.Hits("POST", testutil.Prefix+"/staff/"), "rejected before any request")

	_, err = env.run(t, NewStaffCmd(), "add", "--first-name", "Ada", "--services", "3,x")
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, errCode(err))
}

func TestStaffUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	_, _, st := env.seedBusiness(t)

	resp, err := env.run(t, NewStaffCmd(), "update", jsonID(st.ID), "--role", "senior", "--active=false")
	require.NoError(t, err)
	got := data(t, resp)
	assert.Equal(t, "senior", got["role"])
	assert.Equal(t, false, got["is_active"])
	assert.Equal(t, "Sam", got["first_name"])
	assert.Contains(t, resp["summary"], "[inactive]")

	_, err = env.run(t, NewStaffCmd(), "update", jsonID(st.ID))
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, errCode(err))
}

func TestStaffRemove(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	_, _, st := env.seedBusiness(t)

	_, err := env.run(t, NewStaffCmd(), "remove", jsonID(st.ID))
	require.Error(t, err, "no terminal and no --force")
	assert.Equal(t, output.CodeUsage, errCode(err))

	resp, err := env.run(t, NewStaffCmd(), "rm", jsonID(st.ID), "--force")
	require.NoError(t, err)
	assert.Equal(t, "Removed staff member "+jsonID(st.ID), resp["summary"])

	_, err = env.run(t, NewStaffCmd(), "show", jsonID(st.ID))
	require.Error(t, err)
	assert.Equal(t, output.CodeNotFound, errCode(err))
}

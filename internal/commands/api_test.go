package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

func TestAPIGetReplaysAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, svc, st := env.seedBusiness(t)
	seedAppointment(env, biz, svc, st, time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC), "Ada Lovelace")
	env.api.Expire()

	resp, err := env.run(t, NewAPICmd(), "get", "/api/appointments/?status=pending")
	require.NoError(t, err)
	assert.Equal(t, "1 of 1 items", resp["summary"])
	assert.Equal(t, float64(1), data(t, resp)["count"])
	assert.Equal(t, 1, env.api.RefreshCalls())
	assert.Equal(t, 2, env.api.Hits("GET", testutil.Prefix+"/appointments/"), "one rejected, one replayed")
}

func TestAPIPostWithData(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, _, _ := env.seedBusiness(t)

	path := "/businesses/" + jsonID(biz.ID) + "/services/"
	resp, err := env.run(t, NewAPICmd(), "post", path, "--data", `{"name":"Shave","duration":20,"price":"12.50"}`)
	require.NoError(t, err)
	assert.Regexp(t, `^POST /businesses/\d+/services/: #\d+ Shave$`, resp["summary"])
	assert.Equal(t, "slotbook business show "+jsonID(biz.ID), resp["breadcrumbs"].([]any)[0].(map[string]any)["cmd"])
}

func TestAPIPostFromStdin(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	_, _, st := env.seedBusiness(t)

	resp, err := env.runWithStdin(t, NewAPICmd(), strings.NewReader(`{"role":"manager"}`),
		"patch", "/staff/"+jsonID(st.ID)+"/", "--data", "@-")
	require.NoError(t, err)
	assert.Equal(t, "manager", data(t, resp)["role"])
}

func TestAPIDelete(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	_, _, st := env.seedBusiness(t)

	resp, err := env.run(t, NewAPICmd(), "delete", "/staff/"+jsonID(st.ID)+"/")
	require.NoError(t, err)
	assert.Equal(t, float64(204), data(t, resp)["status"])
	assert.Equal(t, "DELETE /staff/"+jsonID(st.ID)+"/", resp["summary"])
}

func TestAPIErrors(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.seedBusiness(t)

	_, err := env.run(t, NewAPICmd(), "post", "/staff/")
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, errCode(err), "--data is required")

	_, err = env.run(t, NewAPICmd(), "post", "/staff/", "--data", "{nope")
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, errCode(err))

	_, err = env.run(t, NewAPICmd(), "get", "/staff/424242/")
	require.Error(t, err)
	assert.Equal(t, output.CodeNotFound, errCode(err))
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	env.api.SeedBusiness(models.Business{Name: "Fade Factory"})

	_, err := env.run(t, NewAPICmd(), "get", "/businesses/")
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, errCode(err))
	assert.Zero(t, env.api.RefreshCalls(), "no refresh cookie to use")
}

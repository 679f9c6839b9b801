package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

func TestServicesList(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, _, _ := env.seedBusiness(t)
	env.api.SeedService(models.Service{Business: biz.ID, Name: "Beard trim", Duration: 15, Price: "10.00"})

	resp, err := env.run(t, NewServicesCmd(), "ls")
	require.NoError(t, err)
	assert.Equal(t, "2 services", resp["summary"])
	items := list(t, resp)
	require.Len(t, items, 2)
	assert.Equal(t, "Haircut", items[0].(map[string]any)["name"])
}

func TestServicesAdd(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, _, _ := env.seedBusiness(t)

	resp, err := env.run(t, NewServicesCmd(), "add", "--name", "Shave", "--duration", "20", "--price", "12.50")
	require.NoError(t, err)
	svc := data(t, resp)
	assert.Equal(t, "Shave", svc["name"])
	assert.Equal(t, float64(biz.ID), svc["business"])
	assert.Regexp(t, `^Added #\d+ Shave \(20 min, 12\.50\)$`, resp["summary"])
}

func TestServicesAddValidation(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	biz, _, _ := env.seedBusiness(t)

	_, err := env.run(t, NewServicesCmd(), "add", "--name", "Shave")
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeValidation, e.Code)
	assert.Contains(t, e.Message+e.Hint, "duration")
	assert.Zero(t, env.api.Hits("POST", testutil.Prefix+"/businesses/"+jsonID(biz.ID)+"/services/"))
}

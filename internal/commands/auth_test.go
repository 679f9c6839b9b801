package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

func TestAuthLoginWithFlags(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.run(t, NewAuthCmd(), "login", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)

	assert.Equal(t, "Logged in as Test User", resp["summary"])
	assert.Equal(t, testEmail, data(t, resp)["email"])
	assert.True(t, env.app.Auth.HasSession())
	assert.True(t, env.app.State.IsAuthenticated())
	assert.Equal(t, testEmail, env.app.Auth.Jar().Email())
}

func TestAuthLoginPasswordStdin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runWithStdin(t, NewAuthCmd(), strings.NewReader(testPassword+"\n"),
		"login", "-e", testEmail, "--password-stdin")
	require.NoError(t, err)
	assert.True(t, env.app.Auth.HasSession())
}

func TestAuthLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, NewAuthCmd(), "login", "--email", testEmail, "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, errCode(err))
	assert.False(t, env.app.Auth.HasSession())
}

func TestAuthLoginNeedsPasswordWithoutTerminal(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, NewAuthCmd(), "login", "--email", testEmail)
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, errCode(err))
	assert.Contains(t, output.AsError(err).Hint, "--password-stdin")
}

func TestAuthStatus(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.run(t, NewAuthCmd(), "status")
	require.NoError(t, err)
	assert.Contains(t, resp["summary"], "Not logged in")
	assert.Equal(t, false, data(t, resp)["logged_in"])

	env.login(t)
	resp, err = env.run(t, NewAuthCmd(), "status")
	require.NoError(t, err)
	assert.Contains(t, resp["summary"], "Logged in as "+testEmail)
	d := data(t, resp)
	assert.Equal(t, true, d["logged_in"])
	assert.Equal(t, true, d["has_refresh"])
	assert.Equal(t, "file", d["storage"])
	assert.Zero(t, env.api.Hits("POST", testutil.Prefix+"/jwt/verify/"), "status makes no network calls")
}

func TestAuthLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.run(t, NewAuthCmd(), "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out of "+testEmail, resp["summary"])
	assert.False(t, env.app.Auth.HasSession())
	assert.False(t, env.app.State.IsAuthenticated())

	_, err = env.run(t, NewMeCmd())
	assert.Equal(t, output.CodeAuth, errCode(err))
}

func TestAuthRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.run(t, NewAuthCmd(), "refresh")
	require.NoError(t, err)
	assert.Contains(t, resp["summary"], "Session refreshed")
	assert.Equal(t, 1, env.api.RefreshCalls())
	assert.True(t, env.app.State.IsAuthenticated())
	assert.False(t, env.app.Gateway.Coordinator().Locked())
}

func TestAuthRefreshRejected(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.api.RevokeRefresh()

	_, err := env.run(t, NewAuthCmd(), "refresh")
	require.Error(t, err)
	assert.True(t, output.IsUnauthorized(err))
	assert.False(t, env.app.State.IsAuthenticated())
	assert.False(t, env.app.Gateway.Coordinator().Locked(), "a rejected refresh still frees the gate")
}

func TestAuthVerifyRefreshesExpiredAccess(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.api.Expire()

	resp, err := env.run(t, NewAuthCmd(), "verify")
	require.NoError(t, err)
	assert.Equal(t, true, data(t, resp)["valid"])
	assert.Equal(t, 1, env.api.RefreshCalls())
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.run(t, NewMeCmd())
	require.NoError(t, err)
	assert.Equal(t, "Test User <"+testEmail+">", resp["summary"])
	crumbs, _ := resp["breadcrumbs"].([]any)
	require.NotEmpty(t, crumbs)
	assert.Equal(t, "slotbook business list", crumbs[0].(map[string]any)["cmd"], "owners are pointed at their businesses")
}

func TestAuthRegisterAndActivate(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.run(t, NewAuthCmd(), "register",
		"--email", "new@example.com", "--first-name", "Nia", "--password", "s3cret-pass", "--owner")
	require.NoError(t, err)
	assert.Contains(t, resp["summary"], "Registered new@example.com")

	id := int64(data(t, resp)["id"].(float64))
	uid, token := testutil.ActivationToken(id)
	_, err = env.run(t, NewAuthCmd(), "activate", uid, token)
	require.NoError(t, err)

	_, err = env.run(t, NewAuthCmd(), "login", "--email", "new@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)
}

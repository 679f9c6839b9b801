package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/config"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

const (
	testEmail    = "owner@example.com"
	testPassword = "correct-horse"
)

// testEnv is an App wired to a fake API with JSON output captured.
type testEnv struct {
	api *testutil.FakeAPI
	app *appctx.App
	out *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("SLOTBOOK_NO_KEYRING", "1")
	t.Setenv("SLOTBOOK_DEBUG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	fake := testutil.NewFakeAPI(t)
	fake.AddUser(testEmail, testPassword, true)

	cfg := config.Default()
	cfg.BaseURL = fake.URL()
	cfg.StateDir = t.TempDir()
	cfg.Timezone = "UTC"
	cfg.RateLimit = 0

	app, err := appctx.NewApp(cfg, appctx.GlobalFlags{JSON: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	app.Output = output.New(output.Options{Format: output.FormatJSON, Writer: &buf, Location: time.UTC})

	return &testEnv{api: fake, app: app, out: &buf}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.app.Auth.Login(context.Background(), testEmail, testPassword))
}

// seedBusiness creates a business with one service and one staff member
// and selects it.
func (e *testEnv) seedBusiness(t *testing.T) (models.Business, models.Service, models.Staff) {
	t.Helper()
	biz := e.api.SeedBusiness(models.Business{Name: "Fade Factory", Category: "barbershop"})
	svc := e.api.SeedService(models.Service{Business: biz.ID, Name: "Haircut", Duration: 30, Price: "25.00"})
	st := e.api.SeedStaff(models.Staff{Business: biz.ID, FirstName: "Sam", LastName: "Cutter", IsActive: true})
	e.app.Config.BusinessID = strconv.FormatInt(biz.ID, 10)
	return biz, svc, st
}

// run executes cmd with args and decodes the JSON envelope, if any.
func (e *testEnv) run(t *testing.T, cmd *cobra.Command, args ...string) (map[string]any, error) {
	t.Helper()
	return e.runWithStdin(t, cmd, bytes.NewReader(nil), args...)
}

func (e *testEnv) runWithStdin(t *testing.T, cmd *cobra.Command, stdin io.Reader, args ...string) (map[string]any, error) {
	t.Helper()
	e.out.Reset()
	cmd.SetContext(appctx.WithApp(context.Background(), e.app))
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if e.out.Len() == 0 {
		return nil, err
	}
	var resp map[string]any
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &resp), e.out.String())
	return resp, err
}

// data returns the envelope's data as a map.
func data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	m, ok := resp["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", resp["data"])
	return m
}

// list returns the envelope's data as a slice.
func list(t *testing.T, resp map[string]any) []any {
	t.Helper()
	if resp["data"] == nil {
		return nil
	}
	l, ok := resp["data"].([]any)
	require.True(t, ok, "data is not a list: %v", resp["data"])
	return l
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func errCode(err error) string {
	return output.AsError(err).Code
}

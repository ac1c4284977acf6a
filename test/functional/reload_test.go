//go:build functional
// +build functional

package functional

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avauthgate/internal/config"
)

func TestFunctional_Gate_HotReload(t *testing.T) {
	t.Parallel()

	upstream := echoUpstream(t)
	doc := gateDoc(t, upstream.URL)

	path := filepath.Join(t.TempDir(), "authgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, config.ValidateConfig(cfg))

	env := startGateFromConfig(t, cfg)

	watcher, err := config.NewWatcher(path, func(newCfg *config.Config) {
		_ = env.srv.Reload(newCfg)
	})
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	t.Cleanup(func() { _ = watcher.Stop() })

	// The catch-all guards /api before the reload.
	resp, _ := env.get(t, "/api/reports", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Admit /api/reports and rewrite the file.
	reloaded := strings.Replace(doc,
		"rules:\n",
		"rules:\n  - pattern: /api/reports\n    verdict: admit\n", 1)
	require.NotEqual(t, doc, reloaded)
	require.NoError(t, os.WriteFile(path, []byte(reloaded), 0o600))

	require.Eventually(t, func() bool {
		resp, _ := env.get(t, "/api/reports", "")
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 100*time.Millisecond, "the watcher should swap the rule table")

	// Other paths keep their verdicts.
	resp, _ = env.get(t, "/api/orders", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A rewrite that fails validation is discarded and the last table
	// stays active.
	broken := "rules:\n  - pattern: /x\n    verdict: sometimes\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))
	time.Sleep(500 * time.Millisecond)

	resp, _ = env.get(t, "/api/reports", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/config"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/pipeline"
	"github.com/sells-group/company-intel/internal/resilience"
)

func TestEnhancerEnv_Close_Nil(t *testing.T) {
	// Close with all nil fields should not panic.
	env := &enhancerEnv{}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestEnhancerEnv_Close_WithStore(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "close.db"),
		},
	}

	st, err := openStore(context.Background())
	require.NoError(t, err)

	env := &enhancerEnv{Store: st}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_SQLiteMigrates(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "intel.db"),
		},
	}

	st, err := openStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	balance, err := st.Grant(context.Background(), "u-1", 2, "test")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestInitEnhancer_FailsValidation(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "postgres"},
	}

	env, err := initEnhancer(context.Background(), "enhance")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestNewGate_RetriesOnlySearch(t *testing.T) {
	g := newGate(&config.Config{
		Search: config.SearchConfig{MaxAttempts: 4},
	})

	assert.Equal(t, 4, g.Retry(resilience.ServiceSearch).MaxAttempts)
	assert.Equal(t, 1, g.Retry(resilience.ServiceFetch).MaxAttempts)
	assert.Equal(t, 1, g.Retry(resilience.ServiceLLM).MaxAttempts)
}

func TestNewGate_DefaultSearchAttempts(t *testing.T) {
	g := newGate(&config.Config{})
	assert.Equal(t, resilience.DefaultRetryConfig().MaxAttempts, g.Retry(resilience.ServiceSearch).MaxAttempts)
}

func TestViewOutcome(t *testing.T) {
	ts := model.Tearsheet{EnhancementRecord: model.EnhancementRecord{CompanyName: "Northland Cellars LLC"}}

	hit := viewOutcome(pipeline.CacheHit{Tearsheet: ts})
	assert.Equal(t, "cache_hit", hit.Result)
	assert.False(t, hit.Charged)
	assert.Nil(t, hit.CreditsRemaining)
	require.NotNil(t, hit.Tearsheet)

	pay := viewOutcome(pipeline.PaymentRequired{Credits: 0})
	assert.Equal(t, "payment_required", pay.Result)
	require.NotNil(t, pay.CreditsRemaining)
	assert.Equal(t, 0, *pay.CreditsRemaining)
	assert.Nil(t, pay.Tearsheet)

	charged := viewOutcome(pipeline.Completed{Tearsheet: ts, Charged: true, Persisted: true, CreditsRemaining: 4})
	assert.Equal(t, "completed", charged.Result)
	require.NotNil(t, charged.CreditsRemaining)
	assert.Equal(t, 4, *charged.CreditsRemaining)

	free := viewOutcome(pipeline.Completed{Tearsheet: ts})
	assert.False(t, free.Charged)
	assert.Nil(t, free.CreditsRemaining)
}

func TestWriteOutcome(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutcome(&buf, pipeline.PaymentRequired{Credits: 0}))
	assert.JSONEq(t, `{"result":"payment_required","charged":false,"persisted":false,"credits_remaining":0}`, buf.String())
}

func TestCreditsCommands_SQLite(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("INTEL_STORE_DRIVER", "sqlite")
	t.Setenv("INTEL_STORE_DATABASE_URL", filepath.Join(dir, "credits.db"))
	t.Setenv("INTEL_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{"credits", "grant", "--user", "u-1", "--amount", "3", "--reason", "trial"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "user=u-1 balance=3")

	out.Reset()
	rootCmd.SetArgs([]string{"credits", "balance", "--user", "u-1"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "user=u-1 balance=3 tier=free")
}

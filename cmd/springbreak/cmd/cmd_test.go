// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	return executeWith(t, "", args...)
}

func executeWith(t *testing.T, config string, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "springbreak.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log_level: error\n"+config), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfg}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		simThreshold, simInterval = 0, 0
		simulateCmd.Flags().Lookup("threshold").Changed = false
		translateFrom, translateTo = "", ""
	})

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSimulate(t *testing.T) {
	rec := filepath.Join(t.TempDir(), "shake.csv")
	require.NoError(t, os.WriteFile(rec, []byte(
		"timestamp,x,y,z\n"+
			"1000,0,0,0\n"+
			"1200,100,100,100\n"+
			"1250,0,0,0\n"+
			"1400,100,100,100\n",
	), 0o600))

	out := execute(t, "simulate", rec)
	require.Contains(t, out, "shake at 1200 ms (speed 15000.0)")
	require.Contains(t, out,
		"4 samples: 1 seeded, 2 accepted, 1 debounced, 0 out of order, 1 shakes")
}

func TestSimulateThresholdOverride(t *testing.T) {
	rec := filepath.Join(t.TempDir(), "shake.csv")
	require.NoError(t, os.WriteFile(rec, []byte(
		"1000,0,0,0\n1200,100,100,100\n",
	), 0o600))

	out := execute(t, "simulate", "--threshold", "20000", rec)
	require.NotContains(t, out, "shake at")
	require.Contains(t, out, "0 shakes")
}

func TestSimulateZeroThreshold(t *testing.T) {
	rec := filepath.Join(t.TempDir(), "shake.csv")
	require.NoError(t, os.WriteFile(rec, []byte(
		"1000,0,0,0\n1200,0.01,0,0\n",
	), 0o600))

	out := execute(t, "simulate", "--threshold", "0", rec)
	require.Contains(t, out, "shake at 1200 ms")
	require.Contains(t, out, "1 shakes")
}

func TestTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/languages") {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"languages": []map[string]string{
					{"language": "en"}, {"language": "ja"},
				},
			}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"translations": []map[string]string{{"translatedText": "こんにちは"}},
		}})
	}))
	defer srv.Close()

	out := executeWith(t,
		"translate:\n  api_key: test-key\n  endpoint: "+srv.URL+"/language/translate/\n",
		"translate", "--to", "ja-JP", "hello",
	)
	require.Contains(t, out, "English → Japanese: こんにちは")
}

func TestLanguages(t *testing.T) {
	out := execute(t, "languages")
	require.Contains(t, out, "en-US")
	require.Contains(t, out, "Japan")
	require.Contains(t, out, "destination*")
}

func TestVersion(t *testing.T) {
	require.Contains(t, execute(t, "version"), "springbreak dev")
}

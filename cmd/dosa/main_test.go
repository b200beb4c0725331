package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOrders = `[
    {"name": "Alice", "phone": "555-123-4567", "items": [{"name": "Masala Dosa", "price": 10}, {"name": "Coffee", "price": 2.5}], "notes": "extra chutney"},
    {"name": "Bob", "phone": "555-987-6543", "items": [{"name": "Masala Dosa", "price": 10}]}
]`

func writeOrders(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"dosa", "--log-level", "error"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProcessWritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, sampleOrders)
	customers := filepath.Join(dir, "customers.json")
	items := filepath.Join(dir, "items.json")

	code, _, stderr := runCLI(t, "process", "--customers-out", customers, "--items-out", items, input)
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, "{\n    \"555-123-4567\": \"Alice\",\n    \"555-987-6543\": \"Bob\"\n}", readFile(t, customers))
	assert.Equal(t, "{\n"+
		"    \"Masala Dosa\": {\n        \"price\": 10.0,\n        \"orders\": 2\n    },\n"+
		"    \"Coffee\": {\n        \"price\": 2.5,\n        \"orders\": 1\n    }\n"+
		"}", readFile(t, items))
}

func TestProcessMissingArgumentIsUsageError(t *testing.T) {
	code, _, stderr := runCLI(t, "process")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: dosa process <orders.json>")
}

func TestBareInvocationIsUsageError(t *testing.T) {
	for _, args := range [][]string{nil, {"orders.json"}} {
		code, stdout, stderr := runCLI(t, args...)
		assert.Equal(t, 1, code, args)
		assert.Contains(t, stderr, "Usage: dosa <command> <orders.json>")
		assert.NotContains(t, stderr, "No help topic")
		assert.Empty(t, stdout)
	}
}

func TestServerConfigFromEnv(t *testing.T) {
	t.Setenv("DOSA_MAX_REQUEST_SIZE", "2048")
	t.Setenv("DOSA_SHUTDOWN_TIMEOUT", "5s")

	cfg := serverConfig(9090, []string{" https://a.example", "", "https://b.example "}, "k")
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, int64(2048), cfg.MaxRequestSize)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestProcessMissingInputIsLenientByDefault(t *testing.T) {
	dir := t.TempDir()
	customers := filepath.Join(dir, "customers.json")
	items := filepath.Join(dir, "items.json")

	code, _, _ := runCLI(t, "process", "--customers-out", customers, "--items-out", items, filepath.Join(dir, "nope.json"))
	require.Equal(t, 0, code)
	assert.Equal(t, "{}", readFile(t, customers))
	assert.Equal(t, "{}", readFile(t, items))
}

func TestProcessStrictExitCodes(t *testing.T) {
	dir := t.TempDir()

	code, _, _ := runCLI(t, "process", "--strict", filepath.Join(dir, "nope.json"))
	assert.Equal(t, 2, code)

	bad := writeOrders(t, dir, `{"not": "a list"}`)
	code, _, _ = runCLI(t, "process", "--strict", bad)
	assert.Equal(t, 2, code)
}

func TestProcessUnwritableOutputIsIOError(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, sampleOrders)

	code, _, _ := runCLI(t, "process",
		"--customers-out", filepath.Join(dir, "missing", "customers.json"),
		"--items-out", filepath.Join(dir, "items.json"),
		input)
	assert.Equal(t, 3, code)
}

func TestProcessRejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, sampleOrders)
	code, _, _ := runCLI(t, "process", "--count-policy", "weekly", input)
	assert.Equal(t, 1, code)
}

func TestSingleArtifactCommands(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, sampleOrders)
	customers := filepath.Join(dir, "c.json")
	items := filepath.Join(dir, "i.json")

	code, _, _ := runCLI(t, "customers", "--out", customers, input)
	require.Equal(t, 0, code)
	assert.Contains(t, readFile(t, customers), `"555-987-6543": "Bob"`)

	code, _, _ = runCLI(t, "items", "--out", items, "--count-policy", "order", input)
	require.Equal(t, 0, code)
	assert.Contains(t, readFile(t, items), `"Coffee"`)

	_, err := os.Stat(filepath.Join(dir, "items.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestShowText(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, sampleOrders)

	code, stdout, _ := runCLI(t, "show", input)
	require.Equal(t, 0, code)
	assert.Equal(t, "Order from Alice (555-123-4567):\n"+
		" - Masala Dosa: $10.00\n"+
		" - Coffee: $2.50\n"+
		" Notes: extra chutney\n"+
		"\n"+
		"Order from Bob (555-987-6543):\n"+
		" - Masala Dosa: $10.00\n"+
		"\n", stdout)
}

func TestInitDB(t *testing.T) {
	dir := t.TempDir()
	input := writeOrders(t, dir, sampleOrders)
	dsn := filepath.Join(dir, "db.sqlite")

	code, stdout, stderr := runCLI(t, "--db-dsn", dsn, "init-db", input)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Loaded 2 customers, 2 items, 3 orders (0 skipped)\n", stdout)
}

func TestInvalidLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"dosa", "--log-level", "loud", "show", "x.json"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid log level")
}

package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lblanes25/smartlookup/internal/config"
	"github.com/lblanes25/smartlookup/internal/loader"
	"github.com/lblanes25/smartlookup/internal/registry"
	"github.com/lblanes25/smartlookup/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Discovery.SearchDirs = []string{dir}
	eng := New(cfg, loader.NewCSVLoader(zerolog.Nop()), zerolog.Nop())
	return eng, dir
}

func addCSV(t *testing.T, eng *Engine, dir, name, content string, opts registry.AddOptions) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, eng.AddFile(path, opts))
	return path
}

const employeesCSV = "EmployeeID,Department\nE001,Finance\nE002,Audit\n"
const vendorsCSV = "VendorID,Status\nV001,active\nV002,hold\n"

func TestSmartLookup_ResolvesFromCorrectSource(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})
	vendors := addCSV(t, eng, dir, "vendors.csv", vendorsCSV, registry.AddOptions{})

	result := eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")

	assert.Equal(t, "Finance", result.Str())

	// Vendors has neither column, so it was never even loaded.
	stats := eng.Statistics()
	assert.Equal(t, 1, stats.FilesLoaded)
	assert.Equal(t, 1, stats.FilesLazy, "vendors must stay untouched: %s", vendors)
}

func TestSmartLookup_RepeatIsACacheHit(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	first := eng.SmartLookup(types.String("E002"), "EmployeeID", "Department", "")
	after1 := eng.Statistics()
	second := eng.SmartLookup(types.String("E002"), "EmployeeID", "Department", "")
	after2 := eng.Statistics()

	assert.Equal(t, first, second)
	assert.Equal(t, after1.CacheHits+1, after2.CacheHits)
	assert.Equal(t, after1.CacheMisses, after2.CacheMisses,
		"the repeat must not add a miss")
}

func TestSmartLookup_AbsentValueIsCachedAsAbsent(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	result := eng.SmartLookup(types.String("E999"), "EmployeeID", "Department", "")
	assert.True(t, result.IsNull())

	before := eng.Statistics()
	again := eng.SmartLookup(types.String("E999"), "EmployeeID", "Department", "")
	after := eng.Statistics()

	assert.True(t, again.IsNull())
	assert.Equal(t, before.CacheHits+1, after.CacheHits,
		"'checked, absent' must be a cache hit, not a rescan")
}

func TestSmartLookup_SourceHintOverridesRegistrationOrder(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "old.csv", "Code,Desc\nA,from-old\n", registry.AddOptions{})
	addCSV(t, eng, dir, "new.csv", "Code,Desc\nA,from-new\n",
		registry.AddOptions{Alias: "fresh"})

	// Without a hint, registration order wins.
	noHint := eng.SmartLookup(types.String("A"), "Code", "Desc", "")
	assert.Equal(t, "from-old", noHint.Str())

	hinted := eng.SmartLookup(types.String("A"), "Code", "Desc", "fresh")
	assert.Equal(t, "from-new", hinted.Str())
}

func TestSmartLookup_HintByFilenameFragment(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "vendor_master.csv", vendorsCSV, registry.AddOptions{})

	result := eng.SmartLookup(types.String("V002"), "VendorID", "Status", "vendor_mas")
	assert.Equal(t, "hold", result.Str())
}

func TestSmartLookup_SingleColumnSmartMode(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})
	addCSV(t, eng, dir, "vendors.csv", vendorsCSV, registry.AddOptions{})

	// Only the return column is given; the engine finds E002 in the
	// indexed EmployeeID column of the file carrying Department.
	result := eng.SmartLookup(types.String("E002"), "", "Department", "")
	assert.Equal(t, "Audit", result.Str())

	// Absence in smart mode is cached under its own namespace.
	miss := eng.SmartLookup(types.String("nope"), "", "Department", "")
	assert.True(t, miss.IsNull())
	before := eng.Statistics()
	eng.SmartLookup(types.String("nope"), "", "Department", "")
	assert.Equal(t, before.CacheHits+1, eng.Statistics().CacheHits)
}

func TestSmartLookup_NumericEquality(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "amounts.csv", "Amount,Label\n100,hundred\n250,quarter\n",
		registry.AddOptions{})

	// Int cells, float probe: 100.0 == 100 under the value policy.
	result := eng.SmartLookup(types.Float(100.0), "Amount", "Label", "")
	assert.Equal(t, "hundred", result.Str())

	// But the string "100" is not the number 100.
	asString := eng.SmartLookup(types.String("100"), "Amount", "Label", "")
	assert.True(t, asString.IsNull())
}

func TestUnloadFile_PurgesEverything(t *testing.T) {
	eng, dir := newTestEngine(t)
	path := addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	require.Greater(t, eng.Statistics().CacheSize, 0)

	eng.UnloadFile(path)

	stats := eng.Statistics()
	assert.Equal(t, 0, stats.FilesLoaded)
	assert.Equal(t, 0, stats.FilesLazy)
	assert.Equal(t, 0, stats.TotalColumns)
	assert.Equal(t, 0, stats.CacheSize, "no cache key may reference the file")
	assert.Equal(t, 0, stats.IndicesCreated)

	// Unloading again is a no-op.
	eng.UnloadFile(path)
}

func TestAddFile_ReRegisterDropsStaleCache(t *testing.T) {
	eng, dir := newTestEngine(t)
	path := addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	warm := eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	require.Equal(t, "Finance", warm.Str())

	// The file changes on disk and the host re-registers it, as the watch
	// command does.
	require.NoError(t, os.WriteFile(path,
		[]byte("EmployeeID,Department\nE001,Audit\n"), 0644))
	require.NoError(t, eng.AddFile(path, registry.AddOptions{}))

	fresh := eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	assert.Equal(t, "Audit", fresh.Str(),
		"a reloaded file must not serve results cached from its old contents")
}

func TestSmartLookup_LoadFailureDegradesToNull(t *testing.T) {
	eng, dir := newTestEngine(t)
	path := addCSV(t, eng, dir, "doomed.csv", employeesCSV, registry.AddOptions{})

	// The file vanishes between registration and first lookup.
	require.NoError(t, os.Remove(path))

	result := eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	assert.True(t, result.IsNull(), "a bad file degrades to not-found, never an error")
}

func TestTracking(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	// Disabled by default: nothing is recorded.
	eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	assert.Empty(t, eng.TrackedOperations())

	eng.EnableTracking()
	eng.SetCurrentRow(12)
	eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")

	ops := eng.TrackedOperations()
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, 12, op.RowIndex)
	assert.Equal(t, "EmployeeID", op.SearchColumn)
	assert.Equal(t, "Department", op.ReturnColumn)
	assert.Equal(t, "employees", op.SourceAlias)
	assert.Equal(t, "Finance", op.Result.Str())
	assert.True(t, op.Success)
	assert.True(t, op.FromCache, "the first lookup warmed the cache before tracking began")

	eng.ClearTrackedOperations()
	assert.Empty(t, eng.TrackedOperations())
}

func TestTracking_RecordsFailures(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	eng.EnableTracking()
	eng.SmartLookup(types.String("E999"), "EmployeeID", "Department", "")

	ops := eng.TrackedOperations()
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Success)
	assert.True(t, ops[0].Result.IsNull())
}

func TestClearCache(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})

	eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	require.Greater(t, eng.Statistics().CacheSize, 0)

	eng.ClearCache()

	stats := eng.Statistics()
	assert.Equal(t, 0, stats.CacheSize)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(0), stats.CacheMisses)
}

func TestStatistics_Snapshot(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "employees.csv", employeesCSV, registry.AddOptions{})
	addCSV(t, eng, dir, "vendors.csv", vendorsCSV, registry.AddOptions{})

	stats := eng.Statistics()
	assert.Equal(t, 0, stats.FilesLoaded)
	assert.Equal(t, 2, stats.FilesLazy)
	assert.Equal(t, 4, stats.TotalColumns)
	assert.Equal(t, 4, stats.TotalRows)
	assert.Equal(t, 0.0, stats.CacheHitRate)

	eng.SmartLookup(types.String("E001"), "EmployeeID", "Department", "")
	stats = eng.Statistics()
	assert.Equal(t, 1, stats.FilesLoaded)
	assert.Equal(t, 1, stats.FilesLazy)
	assert.Greater(t, stats.IndicesCreated, 0)
}

func TestValidateLookupFormula_EndToEnd(t *testing.T) {
	eng, dir := newTestEngine(t)
	addCSV(t, eng, dir, "vendors.csv", vendorsCSV, registry.AddOptions{})

	ok := eng.ValidateLookupFormula(`LOOKUP([ID],'Status')`)
	assert.False(t, ok.HasErrors)

	missing := eng.ValidateLookupFormula(`LOOKUP([ID],'Statuses')`)
	assert.True(t, missing.HasErrors)
	require.Len(t, missing.Feedback, 1)
	assert.Contains(t, missing.Feedback[0].Suggestion, "Status",
		"near-miss names should be suggested")
}

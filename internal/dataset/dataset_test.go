package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillroute/internal/trace"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	ds, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, ds.TestCases)
	assert.NotNil(t, ds.TestCases)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err := Load(bad)
	assert.ErrorIs(t, err, ErrMalformedDataset)

	noQuery := filepath.Join(dir, "noquery.json")
	require.NoError(t, os.WriteFile(noQuery, []byte(`{"test_cases":[{"expected":"x"}]}`), 0o644))
	_, err = Load(noQuery)
	assert.ErrorIs(t, err, ErrMalformedDataset)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "data.json")
	score := 0.9
	g := true
	in := &Dataset{
		BaselineAccuracy: 0.75,
		TestCases: []TestCase{
			{Query: "ship it", Expected: "GLOBAL:deploy", MinScore: 0.85, Score: &score, Tags: []string{"global"}, ExpectedGlobal: &g},
		},
	}
	require.NoError(t, Save(path, in))
	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestObserve_NewCase(t *testing.T) {
	ds := &Dataset{}
	added := ds.Observe(trace.Record{Query: "begin work", Match: "/lets-go", Score: 0.7, Persona: "ALFRED"}, DefaultMinScore)
	require.True(t, added)
	require.Len(t, ds.TestCases, 1)

	tc := ds.TestCases[0]
	assert.Equal(t, "/lets-go", tc.Expected)
	assert.Equal(t, DefaultMinScore, tc.MinScore)
	require.NotNil(t, tc.Score)
	assert.Equal(t, 0.7, *tc.Score)
	assert.Equal(t, []string{"ALFRED", TagFederated}, tc.Tags)
	assert.Nil(t, tc.ExpectedGlobal)
}

func TestObserve_GlobalAndUnknownPersona(t *testing.T) {
	ds := &Dataset{}
	ds.Observe(trace.Record{Query: "deploy", Match: "GLOBAL:deployer", Score: 1}, DefaultMinScore)
	tc := ds.TestCases[0]
	require.NotNil(t, tc.ExpectedGlobal)
	assert.True(t, *tc.ExpectedGlobal)
	assert.True(t, tc.HasTag(TagGlobal))
	assert.True(t, tc.HasTag("unknown"))
}

func TestObserve_ConflictOverwrites(t *testing.T) {
	old := 0.5
	g := true
	ds := &Dataset{TestCases: []TestCase{
		{Query: "deploy", Expected: "GLOBAL:old", MinScore: 0.9, Score: &old, Tags: []string{TagFederated}, ExpectedGlobal: &g},
	}}
	added := ds.Observe(trace.Record{Query: "deploy", Match: "/run-task", Score: 0.95, Persona: "ALFRED"}, DefaultMinScore)
	assert.False(t, added)
	require.Len(t, ds.TestCases, 1)

	tc := ds.TestCases[0]
	assert.Equal(t, "/run-task", tc.Expected)
	assert.Equal(t, 0.95, *tc.Score)
	assert.Equal(t, 0.9, tc.MinScore)
	assert.Equal(t, []string{"ALFRED", TagFederated, TagRealUser}, tc.Tags)
	require.NotNil(t, tc.ExpectedGlobal)
	assert.False(t, *tc.ExpectedGlobal)
}

func TestAddTags_SortedUnique(t *testing.T) {
	tc := TestCase{Tags: []string{"b", "a"}}
	tc.AddTags("a", " c ", "")
	assert.Equal(t, []string{"a", "b", "c"}, tc.Tags)
}

func TestBackupAndRecover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	require.NoError(t, createBackup(path))
	assert.True(t, HasBackup(path))
	require.NoError(t, os.WriteFile(path, []byte("half-written"), 0o644))

	restored, err := Recover(path)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.False(t, HasBackup(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(b))

	restored, err = Recover(path)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestRecover_EmptyBackupRemovesDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, createBackup(path))
	info, err := os.Stat(BackupPath(path))
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	require.NoError(t, os.WriteFile(path, []byte(`{"test_cases":[]}`), 0o644))
	restored, err := Recover(path)
	require.NoError(t, err)
	assert.True(t, restored)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, HasBackup(path))
}

func TestMoveInto_ConflictNames(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "processed")
	a := filepath.Join(dir, "q_0.91.json")

	require.NoError(t, os.WriteFile(a, []byte("one"), 0o644))
	moved, err := moveInto(a, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "q_0.91.json"), moved)

	require.NoError(t, os.WriteFile(a, []byte("two"), 0o644))
	sum, err := fileMD5(a)
	require.NoError(t, err)
	moved, err = moveInto(a, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "q_0.91.dup-"+sum[:8]+".json"), moved)

	b, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
	assert.NoFileExists(t, a)
}

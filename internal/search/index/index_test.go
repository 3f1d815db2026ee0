package index

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/search"
)

func buildAB(t *testing.T, opts ...Option) *Index {
	t.Helper()
	ix := New(opts...)
	require.NoError(t, ix.Register("A", "start begin launch"))
	require.NoError(t, ix.Register("B", "stop end close"))
	ix.Build()
	return ix
}

func TestSearch_EndToEnd(t *testing.T) {
	ix := buildAB(t)

	rs, err := ix.Search("please begin now")
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "A", rs[0].Trigger)
	assert.Greater(t, rs[0].Score, 0.0)
	assert.InDelta(t, 1/math.Sqrt(3), rs[0].Score, 1e-12)
	assert.Equal(t, search.SourceVector, rs[0].Source)
	assert.Equal(t, 0.0, rs[1].Score)
}

func TestSearch_Deterministic(t *testing.T) {
	ix := buildAB(t)
	first, err := ix.Search("begin and stop")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := ix.Search("begin and stop")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	fresh := buildAB(t)
	uncached, err := fresh.Search("BEGIN and stop ")
	require.NoError(t, err)
	assert.Equal(t, first, uncached)
}

func TestSearch_TiesKeepRegistrationOrder(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Register("zulu", "deploy service"))
	require.NoError(t, ix.Register("alpha", "deploy service"))
	require.NoError(t, ix.Register("mike", "unrelated words"))
	ix.Build()

	rs, err := ix.Search("deploy")
	require.NoError(t, err)
	assert.Equal(t, "zulu", rs[0].Trigger)
	assert.Equal(t, "alpha", rs[1].Trigger)
	assert.Equal(t, rs[0].Score, rs[1].Score)
}

func TestSearch_CorrectionPrecedence(t *testing.T) {
	corr := lexicon.NewCorrections()
	require.NoError(t, corr.Add("start the thing", "GLOBAL:closer"))
	ix := buildAB(t, WithCorrections(corr))

	rs, err := ix.Search("  Start The Thing")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "GLOBAL:closer", rs[0].Trigger)
	assert.Equal(t, lexicon.CorrectionScore, rs[0].Score)
	assert.True(t, rs[0].IsGlobal)
	assert.Equal(t, search.SourceCorrection, rs[0].Source)
}

func TestSearch_TriggerBoostFloor(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Register("A", "start begin launch", "kickoff, the"))
	require.NoError(t, ix.Register("B", "stop end close kickoff kickoff kickoff"))
	ix.Build()

	rs, err := ix.Search("kickoff")
	require.NoError(t, err)
	assert.Equal(t, "A", rs[0].Trigger)
	assert.Equal(t, TriggerBoost, rs[0].Score)
	assert.Equal(t, search.SourceTrigger, rs[0].Source)

	// stopwords never become activation words
	rs, err = ix.Search("the")
	require.NoError(t, err)
	for _, r := range rs {
		assert.Less(t, r.Score, TriggerBoost)
	}
}

func TestSearch_CosineBounds(t *testing.T) {
	th := lexicon.NewThesaurus()
	th.SetWeight("begin", "start", 2.0)
	th.SetWeight("begin", "launch", 2.0)
	ix := New(WithThesaurus(th))
	require.NoError(t, ix.Register("A", "start begin launch start"))
	require.NoError(t, ix.Register("B", "stop end close"))
	require.NoError(t, ix.Register("C", "begin stop"))
	ix.Build()

	for _, q := range []string{"begin", "stop", "begin stop end", "nothing here", "starting", "a"} {
		rs, err := ix.Search(q)
		require.NoError(t, err)
		for _, r := range rs {
			assert.GreaterOrEqual(t, r.Score, 0.0, q)
			assert.LessOrEqual(t, r.Score, 1.0, q)
		}
	}
}

func TestBuild_Invariants(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Register("A", "start begin launch begin"))
	require.NoError(t, ix.Register("B", "stop end close"))
	require.NoError(t, ix.Register("C", "begin end"))
	ix.Build()

	vocab := ix.Vocabulary()
	assert.IsIncreasing(t, vocab)
	for _, s := range ix.Skills() {
		v, ok := ix.Vector(s.Trigger)
		require.True(t, ok)
		assert.Len(t, v, len(vocab))
	}
	for _, tok := range vocab {
		idf, ok := ix.IDF(tok)
		require.True(t, ok)
		assert.GreaterOrEqual(t, idf, 0.0)
	}

	// begin: df=2, N=3 -> ln(3/3)+1
	idf, _ := ix.IDF("begin")
	assert.InDelta(t, 1.0, idf, 1e-12)
	v, _ := ix.Vector("A")
	assert.InDelta(t, 2.0, v[indexOf(vocab, "begin")], 1e-12)

	before, _ := ix.Vector("A")
	ix.Build()
	after, _ := ix.Vector("A")
	assert.Equal(t, before, after)
}

func TestIndex_Misuse(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Register("A", "x"))

	_, err := ix.Search("x")
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = ix.Explain("x", "A")
	assert.ErrorIs(t, err, ErrNotBuilt)

	assert.ErrorIs(t, ix.Register("A", "y"), ErrDuplicateTrigger)
	assert.ErrorIs(t, ix.Register(" ", "y"), ErrEmptyTrigger)

	ix.Build()
	assert.ErrorIs(t, ix.Register("B", "y"), ErrIndexSealed)
	assert.Equal(t, 1, ix.Len())
}

func TestIndex_Empty(t *testing.T) {
	ix := New()
	ix.Build()
	rs, err := ix.Search("anything")
	require.NoError(t, err)
	assert.Empty(t, rs)
	assert.Empty(t, ix.Vocabulary())
}

func TestRegisterDoc_GlobalAndCanonicalText(t *testing.T) {
	ix := New()
	require.NoError(t, ix.RegisterDoc(search.SkillDoc{
		ID:              "deployer",
		Trigger:         "GLOBAL:deployer",
		Name:            "Deployer",
		Description:     "ships releases",
		ActivationWords: []string{"rollout"},
		Global:          true,
	}))
	ix.Build()

	s, ok := ix.Skill("GLOBAL:deployer")
	require.True(t, ok)
	assert.True(t, s.Global)
	assert.Equal(t, "deployer Deployer ships releases rollout", s.Text)
	assert.Equal(t, []string{"deployer", "releases", "rollout", "ships"}, ix.SkillTokens("GLOBAL:deployer"))

	rs, err := ix.Search("rollout")
	require.NoError(t, err)
	assert.True(t, rs[0].IsGlobal)
	assert.Equal(t, TriggerBoost, rs[0].Score)
}

func TestExplain(t *testing.T) {
	ix := buildAB(t)
	ex, err := ix.Explain("begin launch", "A")
	require.NoError(t, err)

	rs, err := ix.Search("begin launch")
	require.NoError(t, err)
	assert.InDelta(t, rs[0].Score, ex.Score, 1e-12)

	require.Len(t, ex.Contributions, 2)
	var sum float64
	for _, c := range ex.Contributions {
		sum += c.Product
	}
	assert.InDelta(t, ex.Cosine, sum, 1e-12)

	_, err = ix.Explain("begin", "nope")
	assert.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestExportAndLoadSnapshot(t *testing.T) {
	ix := buildAB(t)
	out := filepath.Join(t.TempDir(), "index")

	snap, err := Export(ix, out)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Manifest.SkillCount)
	assert.Equal(t, 6, snap.Manifest.Dim)

	// a second export replaces the first
	_, err = Export(ix, out)
	require.NoError(t, err)
	_, err = os.Stat(out + ".bak")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, snap.Skills, loaded.Skills)
	assert.Equal(t, snap.Vocab, loaded.Vocab)
	assert.Equal(t, snap.Manifest.CorpusHash, loaded.Manifest.CorpusHash)
	for i, s := range loaded.Skills {
		v, _ := ix.Vector(s.Trigger)
		assert.Equal(t, v, loaded.Row(i))
	}
}

func TestLoad_RejectsTruncatedVectors(t *testing.T) {
	ix := buildAB(t)
	out := filepath.Join(t.TempDir(), "index")
	_, err := Export(ix, out)
	require.NoError(t, err)

	require.NoError(t, os.Truncate(filepath.Join(out, "vectors.f64"), 8))
	_, err = Load(out)
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	c, err := Cosine([]float64{1, 0}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, c)

	c, err = Cosine([]float64{1, 2}, []float64{2, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c, 1e-12)

	_, err = Cosine([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrVectorLengthMismatch)
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func TestIndex_ReadersDuringRegistration(t *testing.T) {
	ix := New()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = ix.Len()
				_, _ = ix.Skill("skill-0")
				_, _ = ix.Vector("skill-0")
				_ = ix.Skills()
				_ = ix.Vocabulary()
				_, _ = ix.IDF("word")
				_ = ix.Built()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, ix.Register(fmt.Sprintf("skill-%d", i), fmt.Sprintf("word term%d", i)))
	}
	ix.Build()
	close(stop)
	wg.Wait()

	assert.Equal(t, 50, ix.Len())
	idf, ok := ix.IDF("word")
	require.True(t, ok)
	assert.InDelta(t, math.Log(50.0/51.0)+1, idf, 1e-12)
}

func TestBuild_SecondCallIsNoOp(t *testing.T) {
	ix := buildAB(t)
	first, err := ix.Search("begin")
	require.NoError(t, err)
	vocab := ix.Vocabulary()

	ix.Build()
	assert.Equal(t, vocab, ix.Vocabulary())
	again, err := ix.Search("begin")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

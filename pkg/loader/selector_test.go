package loader

import (
	"testing"

	"github.com/secchiware/secchiware/pkg/testpkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, Reload(r, sampleForest(), sampleManifest()))
	return r
}

func TestSelectEmptySelectorRunsEverything(t *testing.T) {
	r := newTestRegistry(t)
	names, err := r.Select(Selector{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1.m.S.a", "p1.m.S.b", "p2.m.T.c"}, names)
}

func TestSelectByTestSetScenario3(t *testing.T) {
	r := newTestRegistry(t)
	// spec scenario 3: test_sets=p1.m.S returns exactly a then b
	names, err := r.Select(Selector{TestSets: []string{"p1.m.S"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1.m.S.a", "p1.m.S.b"}, names)
}

func TestSelectByPackage(t *testing.T) {
	r := newTestRegistry(t)
	names, err := r.Select(Selector{Packages: []string{"p2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2.m.T.c"}, names)
}

func TestSelectByModule(t *testing.T) {
	r := newTestRegistry(t)
	names, err := r.Select(Selector{Modules: []string{"p1.m"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1.m.S.a", "p1.m.S.b"}, names)
}

func TestSelectByTest(t *testing.T) {
	r := newTestRegistry(t)
	names, err := r.Select(Selector{Tests: []string{"p1.m.S.b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1.m.S.b"}, names)
}

func TestSelectUnionAcrossLists(t *testing.T) {
	r := newTestRegistry(t)
	names, err := r.Select(Selector{Packages: []string{"p2"}, Tests: []string{"p1.m.S.a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1.m.S.a", "p2.m.T.c"}, names)
}

func TestSelectUnknownNameFailsWholeRequest(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Select(Selector{TestSets: []string{"p1.m.Ghost"}})
	require.Error(t, err)
	var unknown *ErrUnknownName
	assert.ErrorAs(t, err, &unknown)
}

func TestSelectResolvingToZeroTestsReturnsEmptyNotError(t *testing.T) {
	r := NewRegistry()
	forest := sampleForest()
	// an installed test set with no tests in it is a valid, if unusual, selection target
	forest[0].Modules[0].TestSets = append(forest[0].Modules[0].TestSets, &testpkg.TestSet{Name: "Empty"})
	require.NoError(t, Reload(r, forest, sampleManifest()))

	names, err := r.Select(Selector{TestSets: []string{"p1.m.Empty"}})
	require.NoError(t, err)
	assert.Empty(t, names)
}

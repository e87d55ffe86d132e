package loader

import (
	"testing"

	"github.com/secchiware/secchiware/pkg/testpkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(ctx Context) Outcome { return Outcome{ResultCode: 1} }

func sampleForest() []*testpkg.Package {
	return []*testpkg.Package{
		{
			Name: "p1",
			Modules: []*testpkg.Module{
				{
					Name: "m",
					TestSets: []*testpkg.TestSet{
						{Name: "S", Tests: []*testpkg.Test{
							{Name: "a", Description: "first"},
							{Name: "b", Description: "second"},
						}},
					},
				},
			},
		},
		{
			Name: "p2",
			Modules: []*testpkg.Module{
				{Name: "m", TestSets: []*testpkg.TestSet{
					{Name: "T", Tests: []*testpkg.Test{{Name: "c"}}},
				}},
			},
		},
	}
}

func sampleManifest() Manifest {
	return Manifest{
		Tests: map[string]TestFunc{
			"p1.m.S.a": passing,
			"p1.m.S.b": passing,
			"p2.m.T.c": passing,
		},
	}
}

func TestReloadAcceptsCompleteManifest(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Reload(r, sampleForest(), sampleManifest()))
	assert.True(t, r.HasPackage("p1"))
	assert.True(t, r.HasPackage("p2"))
}

func TestReloadRejectsMissingTestFunc(t *testing.T) {
	r := NewRegistry()
	manifest := sampleManifest()
	delete(manifest.Tests, "p2.m.T.c")

	err := Reload(r, sampleForest(), manifest)
	assert.Error(t, err)
	assert.False(t, r.HasPackage("p1"), "a failed reload must not install anything")
}

func TestReloadRejectsExtraneousTestFunc(t *testing.T) {
	r := NewRegistry()
	manifest := sampleManifest()
	manifest.Tests["p3.ghost.S.x"] = passing

	err := Reload(r, sampleForest(), manifest)
	assert.Error(t, err)
}

func TestFailedReloadLeavesPreviousSnapshotInPlace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Reload(r, sampleForest(), sampleManifest()))

	badManifest := Manifest{Tests: map[string]TestFunc{}}
	err := Reload(r, sampleForest(), badManifest)
	assert.Error(t, err)

	// previous snapshot (with p1/p2 installed) must still be active
	assert.True(t, r.HasPackage("p1"))
	names, err := r.Select(Selector{})
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestInfoIsSortedAndComplete(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Reload(r, sampleForest(), sampleManifest()))

	info := r.Info()
	require.Len(t, info, 2)
	assert.Equal(t, "p1", info[0].Name)
	assert.Equal(t, "p2", info[1].Name)
}

package testpkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []*Package {
	return []*Package{
		{
			Name: "p1",
			Modules: []*Module{
				{
					Name: "m",
					TestSets: []*TestSet{
						{
							Name: "S",
							Tests: []*Test{
								{Name: "b", Description: "second"},
								{Name: "a", Description: "first"},
							},
						},
					},
				},
			},
		},
		{
			Name: "p2",
			Modules: []*Module{
				{Name: "m", TestSets: []*TestSet{{Name: "T", Tests: []*Test{{Name: "c"}}}}},
			},
		},
	}
}

func TestWalkIsDeterministicAndAlphabetical(t *testing.T) {
	var names []string
	Walk(sampleTree(), func(e Entry) {
		if e.Kind == KindTest {
			names = append(names, e.Name)
		}
	})

	assert.Equal(t, []string{"p1.m.S.a", "p1.m.S.b", "p2.m.T.c"}, names)
}

func TestWalkVisitsEveryKind(t *testing.T) {
	counts := map[Kind]int{}
	Walk(sampleTree(), func(e Entry) { counts[e.Kind]++ })

	assert.Equal(t, 2, counts[KindPackage])
	assert.Equal(t, 2, counts[KindModule])
	assert.Equal(t, 2, counts[KindTestSet])
	assert.Equal(t, 3, counts[KindTest])
}

func TestBuildInfoSortsChildren(t *testing.T) {
	p := &Package{
		Name: "root",
		Modules: []*Module{
			{Name: "z"},
			{Name: "a", TestSets: []*TestSet{{Name: "only", Tests: []*Test{{Name: "t"}}}}},
		},
	}
	info := p.BuildInfo()
	require.Len(t, info.Modules, 2)
	assert.Equal(t, "a", info.Modules[0].Name)
	assert.Equal(t, "z", info.Modules[1].Name)
}

func TestPackageEqualIgnoresOrder(t *testing.T) {
	a := &Package{Name: "p", Modules: []*Module{
		{Name: "m1", TestSets: []*TestSet{{Name: "S1", Tests: []*Test{{Name: "t1"}}}}},
		{Name: "m2", TestSets: []*TestSet{{Name: "S2", Tests: []*Test{{Name: "t2"}}}}},
	}}
	b := &Package{Name: "p", Modules: []*Module{
		{Name: "m2", TestSets: []*TestSet{{Name: "S2", Tests: []*Test{{Name: "t2"}}}}},
		{Name: "m1", TestSets: []*TestSet{{Name: "S1", Tests: []*Test{{Name: "t1"}}}}},
	}}
	assert.True(t, a.Equal(b))
}

func TestPackageEqualDetectsDifference(t *testing.T) {
	a := &Package{Name: "p", Modules: []*Module{{Name: "m", TestSets: []*TestSet{{Name: "S"}}}}}
	b := &Package{Name: "p", Modules: []*Module{{Name: "m", TestSets: []*TestSet{{Name: "T"}}}}}
	assert.False(t, a.Equal(b))
}

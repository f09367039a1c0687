package modules_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/modtest/pkg/modules"
)

func TestSet_Algebra(t *testing.T) {
	t.Parallel()

	changed := modules.NewSet("sale", "stock")
	include := modules.NewSet("crm")
	exclude := modules.NewSet("stock", "website")

	got := modules.Effective(changed, include, exclude)

	assert.Equal(t, []string{"crm", "sale"}, got.Sorted())
	assert.Equal(t, []string{"sale", "stock"}, changed.Sorted(), "inputs must not be mutated")
}

func TestSet_IncludeWinsOverUnchanged(t *testing.T) {
	t.Parallel()

	got := modules.Effective(modules.NewSet("sale"), modules.NewSet("sale", "account"), modules.NewSet())

	assert.True(t, got.Has("account"))
	assert.True(t, got.Has("sale"))
}

func TestSet_ExcludeWinsOverInclude(t *testing.T) {
	t.Parallel()

	got := modules.Effective(modules.NewSet(), modules.NewSet("crm"), modules.NewSet("crm"))

	assert.Zero(t, got.Len())
}

func TestSet_ExactStringEquality(t *testing.T) {
	t.Parallel()

	got := modules.Effective(modules.NewSet("Sale", "sale_stock"), modules.NewSet(), modules.NewSet("sale"))

	assert.Equal(t, []string{"Sale", "sale_stock"}, got.Sorted())
}

func TestSet_EmptyNamesIgnored(t *testing.T) {
	t.Parallel()

	set := modules.NewSet("", "crm", "")

	assert.Equal(t, 1, set.Len())
}

func TestSet_OrderIndependent(t *testing.T) {
	t.Parallel()

	names := []string{"sale", "stock", "crm", "sale", "account", "crm", "mrp"}
	exclude := []string{"mrp", "website"}

	want := modules.Effective(modules.NewSet(names...), modules.NewSet("hr"), modules.NewSet(exclude...)).Sorted()

	rng := rand.New(rand.NewPCG(1, 2))

	for range 50 {
		shuffled := slices.Clone(names)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := modules.Effective(modules.NewSet(shuffled...), modules.NewSet("hr"), modules.NewSet(exclude...))
		assert.Equal(t, want, got.Sorted())
	}
}

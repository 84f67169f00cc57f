package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/spa-availability/internal/catalog"
)

func keys(t *testing.T, scanType, massageType string) []string {
	t.Helper()
	var out []string
	for _, c := range SelectCategories(catalog.Default(), scanType, massageType) {
		out = append(out, c.Key)
	}
	return out
}

func TestSelectCategories(t *testing.T) {
	assert.Equal(t, []string{"spa_pass"}, keys(t, "spapass", ""))
	assert.Equal(t, []string{"swedish", "deep_tissue", "couples"}, keys(t, "massage", ""))
	assert.Equal(t, []string{"deep_tissue"}, keys(t, "MASSAGE", " Deep_Tissue "))
	assert.Equal(t, []string{"swedish", "deep_tissue", "couples"}, keys(t, "massage", "hot_stone"),
		"an unknown massage type scans every massage category")
	assert.Equal(t, []string{"swedish", "deep_tissue", "couples", "spa_pass"}, keys(t, "", ""))
	assert.Equal(t, []string{"swedish", "deep_tissue", "couples", "spa_pass"}, keys(t, "everything", "swedish"))
}

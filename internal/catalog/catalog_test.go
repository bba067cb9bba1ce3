package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "boues_activees", NormalizeKey("Boues_Activées"))
	assert.Equal(t, "epuration", NormalizeKey("  ÉPURATION "))
	assert.Equal(t, NormalizeKey("Lits de séchage"), NormalizeKey("LITS DE SECHAGE"))
}

func TestLookup_CaseAndAccentInsensitive(t *testing.T) {
	cat := New(ProcessType{ID: "boues_activées"})

	for _, id := range []string{"boues_activées", "BOUES_ACTIVEES", "Boues_Activees"} {
		pt, ok := cat.Lookup(id)
		assert.True(t, ok, id)
		assert.Equal(t, "boues_activées", pt.ID)
	}
	_, ok := cat.Lookup("lagunage")
	assert.False(t, ok)

	var nilCat *Catalog
	_, ok = nilCat.Lookup("x")
	assert.False(t, ok)
	assert.Equal(t, 0, nilCat.Len())
}

func TestNew_FirstDuplicateWins(t *testing.T) {
	cat := New(ProcessType{ID: "MBR", Name: "first"}, ProcessType{ID: "mbr", Name: "second"})
	assert.Equal(t, 1, cat.Len())
	pt, _ := cat.Lookup("mbr")
	assert.Equal(t, "first", pt.Name)
}

func TestStageNames_WaterThenTopLevel(t *testing.T) {
	pt := ProcessType{
		Water:    map[Stage]StageList{StageTertiary: OrderedNames{"Filtration sur sable"}},
		TopLevel: map[Stage]StageList{StageTertiary: NewNamedDefaults([2]string{"Désinfection UV", "en_service"})},
	}
	assert.Equal(t, []string{"Filtration sur sable", "Désinfection UV"}, pt.StageNames(StageTertiary))
	assert.Nil(t, pt.StageNames(StagePrimary))
}

func TestFormatProcessName(t *testing.T) {
	assert.Equal(t, "BOUES ACTIVEES", FormatProcessName("boues_activees"))
	assert.Equal(t, "MBR", FormatProcessName("mbr"))
	assert.Equal(t, "", FormatProcessName(""))
}

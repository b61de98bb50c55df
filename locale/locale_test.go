package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestFrenchMessages(t *testing.T) {
	b, err := NewBundle("fr")
	require.NoError(t, err)
	fr := b.Default()

	assert.Equal(t, "Code INSEE non valide.", fr.Text(UnknownLocation))
	assert.Equal(t, "Aucune donnée pour cette année.", fr.Text(NoDataForYear))
	assert.Equal(t, "70,00 %", fr.Percent(0.7))
	assert.Equal(t, "Classe 1 : 30,00 %", fr.ClassShare(1, 0.3))
	assert.Equal(t, "0,85", fr.Decimal(0.8512, 2))
	assert.Equal(t, "Choisissez une année entre 2019 et 2022.", fr.YearRange(2019, 2022))
}

func TestEnglishMessages(t *testing.T) {
	b, err := NewBundle("en")
	require.NoError(t, err)
	en := b.Default()

	assert.Equal(t, language.English, en.Tag())
	assert.Equal(t, "Invalid INSEE code.", en.Text(UnknownLocation))
	assert.Equal(t, "70.00%", en.Percent(0.7))
	assert.Equal(t, "Class 0: 70.00%", en.ClassShare(0, 0.7))
	assert.Equal(t, "Unknown command: map / predict.", en.Text(InvalidCommand, "map", "predict"))
}

func TestLookup(t *testing.T) {
	b, err := NewBundle("fr")
	require.NoError(t, err)

	tests := []struct {
		accept string
		want   language.Tag
	}{
		{accept: "", want: language.French},
		{accept: "en-US,en;q=0.9", want: language.English},
		{accept: "fr-CA", want: language.French},
		{accept: "en", want: language.English},
		{accept: "ja", want: language.French},
		{accept: ";;garbage", want: language.French},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Lookup(tt.accept).Tag())
		})
	}
}

func TestEveryKeyTranslated(t *testing.T) {
	fr := translations[language.French]
	en := translations[language.English]
	assert.Len(t, en, len(fr))
	for key := range fr {
		assert.Contains(t, en, key)
	}
}

func TestNewBundleRejectsUnsupportedLocale(t *testing.T) {
	_, err := NewBundle("de")
	assert.Error(t, err)
	_, err = NewBundle("not a tag!")
	assert.Error(t, err)
}

package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogs(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	ru := `ru:
  name: "Русский"
  greeting: "Привет"
  trial_left: "Осталось {rest} сообщений"
  supportive:
    - "первая"
    - "вторая"
  plans:
    warm:
      name: "ТЕПЛО"
`
	en := `en:
  name: "English"
  greeting: "Hello"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ru.yaml"), []byte(ru), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(en), 0o600))

	return dir
}

func TestLoadFromDir(t *testing.T) {
	m, err := LoadFromDir(writeCatalogs(t), "ru")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, m.Languages())
	assert.True(t, m.Known("en"))
	assert.False(t, m.Known("de"))
	assert.Equal(t, "ru", m.DefaultLang())
}

func TestLoadFromDirMissingDefault(t *testing.T) {
	_, err := LoadFromDir(writeCatalogs(t), "de")
	assert.Error(t, err)
}

func TestTranslatorLookup(t *testing.T) {
	m, err := LoadFromDir(writeCatalogs(t), "ru")
	require.NoError(t, err)

	ru := m.Translator("ru")
	assert.Equal(t, "Привет", ru.T("greeting"))
	assert.Equal(t, "ТЕПЛО", ru.T("plans.warm.name"))

	// unknown key comes back verbatim
	assert.Equal(t, "nope.such.key", ru.T("nope.such.key"))

	// unknown language falls back to the default catalog
	de := m.Translator("de")
	assert.Equal(t, "ru", de.Lang())
	assert.Equal(t, "Привет", de.T("greeting"))

	// missing keys in a known language fall back to the default catalog
	en := m.Translator("en")
	assert.Equal(t, "Hello", en.T("greeting"))
	assert.Equal(t, "ТЕПЛО", en.T("plans.warm.name"))
}

func TestTranslatorSubstitution(t *testing.T) {
	m, err := LoadFromDir(writeCatalogs(t), "ru")
	require.NoError(t, err)

	ru := m.Translator("ru")
	assert.Equal(t, "Осталось 5 сообщений", ru.Tr("trial_left", "rest", "5"))
}

func TestTranslatorPool(t *testing.T) {
	m, err := LoadFromDir(writeCatalogs(t), "ru")
	require.NoError(t, err)

	ru := m.Translator("ru")
	assert.Equal(t, []string{"первая", "вторая"}, ru.Pool("supportive"))
	assert.Empty(t, ru.Pool("missing"))
}

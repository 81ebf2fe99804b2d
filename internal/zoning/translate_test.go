package zoning

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/enrich-cli/pkg/translate"
)

type fakeTranslator struct {
	result *translate.Translation
	err    error
	calls  int
}

func (f *fakeTranslator) Translate(ctx context.Context, label, targetLanguage string) (*translate.Translation, error) {
	f.calls++
	return f.result, f.err
}

func TestApplyTranslation(t *testing.T) {
	t.Parallel()

	tr := &fakeTranslator{result: &translate.Translation{Label: "Rural land", Confidence: 0.92}}
	info := &ZoningInfo{Label: "Solo rústico", Source: "pt-crus"}

	got := ApplyTranslation(context.Background(), tr, info, "en")
	require.NotNil(t, got)
	assert.Equal(t, "Rural land", got.Label)
	assert.Equal(t, "Solo rústico", got.LabelOriginal)
	assert.True(t, got.Translated)
	assert.Equal(t, 0.92, got.Confidence)

	// Input is not mutated.
	assert.Equal(t, "Solo rústico", info.Label)
	assert.False(t, info.Translated)
}

func TestApplyTranslation_Idempotent(t *testing.T) {
	t.Parallel()

	tr := &fakeTranslator{result: &translate.Translation{Label: "Rural land", Confidence: 0.92}}
	info := &ZoningInfo{Label: "Solo rústico"}

	once := ApplyTranslation(context.Background(), tr, info, "en")
	twice := ApplyTranslation(context.Background(), tr, once, "en")

	assert.Same(t, once, twice)
	assert.Equal(t, "Solo rústico", twice.LabelOriginal)
	assert.Equal(t, 1, tr.calls)
}

func TestApplyTranslation_FailureKeepsOriginal(t *testing.T) {
	t.Parallel()

	tr := &fakeTranslator{err: eris.New("model unavailable")}
	info := &ZoningInfo{Label: "Suelo urbanizable"}

	got := ApplyTranslation(context.Background(), tr, info, "en")
	require.NotNil(t, got)
	assert.Equal(t, "Suelo urbanizable", got.Label)
	assert.Empty(t, got.LabelOriginal)
	assert.False(t, got.Translated)
}

func TestApplyTranslation_NilAndEmptyInputs(t *testing.T) {
	t.Parallel()

	tr := &fakeTranslator{result: &translate.Translation{Label: "x"}}

	assert.Nil(t, ApplyTranslation(context.Background(), tr, nil, "en"))

	empty := &ZoningInfo{Parish: "Alvalade"}
	assert.Same(t, empty, ApplyTranslation(context.Background(), tr, empty, "en"))

	noTr := &ZoningInfo{Label: "Solo urbano"}
	assert.Same(t, noTr, ApplyTranslation(context.Background(), nil, noTr, "en"))
	assert.Equal(t, 0, tr.calls)
}

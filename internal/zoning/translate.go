package zoning

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/pkg/translate"
)

// ApplyTranslation translates the zoning label into the target language and
// returns a copy with Label swapped and LabelOriginal preserved. An already
// translated info is returned unchanged so LabelOriginal always traces back
// to the untranslated designation. Translation failure keeps the original
// label and never surfaces as an error.
func ApplyTranslation(ctx context.Context, tr translate.Translator, info *ZoningInfo, targetLanguage string) *ZoningInfo {
	if info == nil || tr == nil || info.Translated || info.Label == "" {
		return info
	}

	res, err := tr.Translate(ctx, info.Label, targetLanguage)
	if err != nil {
		zap.L().Warn("zoning: translation failed, keeping original label",
			zap.String("label", info.Label),
			zap.String("target_language", targetLanguage),
			zap.Error(err))
		return info
	}

	out := *info
	out.LabelOriginal = info.Label
	out.Label = res.Label
	out.Confidence = res.Confidence
	out.Translated = true
	return &out
}

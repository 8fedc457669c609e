// Package fingerprint derives deterministic cache keys from normalized
// synthesis requests.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/book-expert/synthesis-service/internal/core"
)

// TextPrefixLength bounds how much of the normalized text participates in the
// fingerprint.
const TextPrefixLength = 100

// Compute maps a normalized request and a provider identity to a cache key.
// The canonical rendition uses a fixed field order, so two requests with
// identical fingerprint-relevant fields always map to the same key. Provider
// identity is part of the key to avoid cross-provider cache poisoning.
func Compute(normalizedText string, voice core.VoiceSelector, opts core.AudioOptions, providerName string) string {
	var canonical strings.Builder

	canonical.WriteString("text=")
	canonical.WriteString(textPrefix(normalizedText))
	canonical.WriteString("|lang=")
	canonical.WriteString(voice.LanguageCode)
	canonical.WriteString("|voice=")
	canonical.WriteString(voice.Name)
	canonical.WriteString("|gender=")
	canonical.WriteString(voice.Gender)

	fmt.Fprintf(
		&canonical,
		"|enc=%s|rate=%.3f|pitch=%.3f|gain=%.3f|hz=%d",
		opts.Encoding,
		opts.SpeakingRate,
		opts.Pitch,
		opts.VolumeGainDB,
		opts.SampleRateHertz,
	)

	canonical.WriteString("|provider=")
	canonical.WriteString(providerName)

	digest := sha256.Sum256([]byte(canonical.String()))

	return hex.EncodeToString(digest[:])
}

// ForRequest computes the fingerprint of a request whose text has already
// been normalized by the preprocessing collaborator.
func ForRequest(req *core.SynthesisRequest, providerName string) string {
	return Compute(req.Text, req.Voice, req.Audio, providerName)
}

func textPrefix(text string) string {
	runes := []rune(text)
	if len(runes) <= TextPrefixLength {
		return text
	}

	return string(runes[:TextPrefixLength])
}

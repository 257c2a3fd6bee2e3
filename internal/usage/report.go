// Package usage converts model-provider usage reports into session cost and
// token totals. Two tracking strategies exist: the voice pipeline accumulates
// per-response increments, the chat pipeline polls absolute totals and
// replaces its display state. The two are deliberately kept distinct; their
// semantics (incremental vs. absolute) must not be conflated.
package usage

import (
	"github.com/diagramlab/diagrambot/internal/config"
)

// TokenDetails is one nested count block of a usage report.
type TokenDetails struct {
	TextTokens          int64         `json:"text_tokens"`
	AudioTokens         int64         `json:"audio_tokens"`
	ImageTokens         int64         `json:"image_tokens"`
	CachedTokensDetails *TokenDetails `json:"cached_tokens_details,omitempty"`
}

// Report mirrors the provider's per-response usage payload.
type Report struct {
	InputTokenDetails  TokenDetails `json:"input_token_details"`
	OutputTokenDetails TokenDetails `json:"output_token_details"`
}

// Counts extracts the eight recognized token categories from a report.
// Missing fields count as zero; anything else in the payload is ignored.
func (r Report) Counts() map[config.Category]int64 {
	var cached TokenDetails
	if r.InputTokenDetails.CachedTokensDetails != nil {
		cached = *r.InputTokenDetails.CachedTokensDetails
	}

	return map[config.Category]int64{
		config.InputText:        r.InputTokenDetails.TextTokens,
		config.InputAudio:       r.InputTokenDetails.AudioTokens,
		config.InputImage:       r.InputTokenDetails.ImageTokens,
		config.InputTextCached:  cached.TextTokens,
		config.InputAudioCached: cached.AudioTokens,
		config.InputImageCached: cached.ImageTokens,
		config.OutputText:       r.OutputTokenDetails.TextTokens,
		config.OutputAudio:      r.OutputTokenDetails.AudioTokens,
	}
}

// Empty reports whether the report carries no token counts at all.
func (r Report) Empty() bool {
	for _, n := range r.Counts() {
		if n != 0 {
			return false
		}
	}
	return true
}

// Cost prices a report against a table: the sum over all recognized
// categories of count times per-token price. Categories absent from the
// table contribute zero.
func (r Report) Cost(table config.PriceTable) float64 {
	var cost float64
	for c, n := range r.Counts() {
		cost += table.Cost(c, n)
	}
	return cost
}

// TotalTokens returns the sum of all recognized token counts.
func (r Report) TotalTokens() int64 {
	var total int64
	for _, n := range r.Counts() {
		total += n
	}
	return total
}

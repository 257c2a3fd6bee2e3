package config

// Category identifies one of the token categories the usage accountant
// recognizes. The set is fixed: reports may carry other categories, but
// they never contribute to cost.
type Category string

// Recognized token categories.
const (
	InputText        Category = "input_text"
	InputAudio       Category = "input_audio"
	InputImage       Category = "input_image"
	InputTextCached  Category = "input_text_cached"
	InputAudioCached Category = "input_audio_cached"
	InputImageCached Category = "input_image_cached"
	OutputText       Category = "output_text"
	OutputAudio      Category = "output_audio"
)

// Categories lists all recognized token categories in a stable order.
var Categories = []Category{
	InputText,
	InputAudio,
	InputImage,
	InputTextCached,
	InputAudioCached,
	InputImageCached,
	OutputText,
	OutputAudio,
}

// Built-in price table names. The realtime tables price the voice pipeline;
// the chat table prices the text pipeline's absolute cost reporting.
const (
	TableGPT4Realtime = "gpt4-realtime"
	TableGPT4oMini    = "gpt-4o-mini"
	TableGPT4o        = "gpt-4o"
)

// PriceTable maps token categories to USD per million tokens.
// Tables are selected once at session configuration time and treated as
// read-only afterwards.
type PriceTable struct {
	Name    string
	PerMTok map[Category]float64
}

// PerToken returns the USD price for a single token of the given category.
// Categories absent from the table price at zero.
func (t PriceTable) PerToken(c Category) float64 {
	return t.PerMTok[c] / 1_000_000
}

// Cost returns the USD cost for n tokens of the given category.
func (t PriceTable) Cost(c Category, n int64) float64 {
	return float64(n) * t.PerToken(c)
}

// defaultTables holds the built-in price tables, keyed by table name.
var defaultTables = map[string]PriceTable{
	TableGPT4Realtime: {
		Name: TableGPT4Realtime,
		PerMTok: map[Category]float64{
			InputText:        4.00,
			InputAudio:       32.00,
			InputImage:       5.00,
			InputTextCached:  0.40,
			InputAudioCached: 0.40,
			InputImageCached: 0.50,
			OutputText:       16.00,
			OutputAudio:      64.00,
		},
	},
	TableGPT4oMini: {
		Name: TableGPT4oMini,
		PerMTok: map[Category]float64{
			InputText:        0.60,
			InputAudio:       10.00,
			InputTextCached:  0.30,
			InputAudioCached: 0.30,
			OutputText:       2.40,
			OutputAudio:      20.00,
		},
	},
	TableGPT4o: {
		Name: TableGPT4o,
		PerMTok: map[Category]float64{
			InputText:       2.50,
			InputTextCached: 1.25,
			OutputText:      10.00,
		},
	},
}

// LookupTable returns the price table with the given name.
func LookupTable(name string) (PriceTable, bool) {
	t, ok := defaultTables[name]
	return t, ok
}

// TableOrDefault returns the named table, falling back to gpt4-realtime
// when the name is empty or unknown.
func TableOrDefault(name string) PriceTable {
	if t, ok := defaultTables[name]; ok {
		return t
	}
	return defaultTables[TableGPT4Realtime]
}

// applyPricingOverrides merges TOML overrides into the built-in tables.
// Runs once during Load, before any session starts; only recognized
// categories are honored.
func applyPricingOverrides(o PricingOverrides) {
	for tableName, prices := range o.Overrides {
		table, ok := defaultTables[tableName]
		if !ok {
			continue
		}

		merged := make(map[Category]float64, len(table.PerMTok))
		for c, v := range table.PerMTok {
			merged[c] = v
		}
		for raw, v := range prices {
			c := Category(raw)
			if !isRecognized(c) {
				continue
			}
			merged[c] = v
		}

		defaultTables[tableName] = PriceTable{Name: table.Name, PerMTok: merged}
	}
}

func isRecognized(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

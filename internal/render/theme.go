package render

// defaultPalette is the line/bar color cycle used for model labels.
var defaultPalette = []string{
	"#8bdcbe", "#f05a71", "#371ea3", "#46bac2",
	"#ae2c87", "#ffa58c", "#4378bf",
}

// DefaultColors returns n colors from the default palette, cycling when more
// series than palette entries are requested.
func DefaultColors(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = defaultPalette[i%len(defaultPalette)]
	}
	return out
}

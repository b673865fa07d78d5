package compare

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter formats comparison results as JSON
type JSONFormatter struct {
	Pretty bool
}

// Format encodes the comparison with a trailing newline. HTML characters in
// plan names are left unescaped, and empty recommendations encode as [].
func (jf *JSONFormatter) Format(compSet *StrategyComparisonResult) (string, error) {
	out := *compSet
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if out.AlternativeResults == nil {
		out.AlternativeResults = []StrategyResult{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if jf.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(&out); err != nil {
		return "", err
	}
	return buf.String(), nil
}

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
)

// reFence matches a markdown code-fence delimiter with its optional language tag.
var reFence = regexp.MustCompile("```[A-Za-z0-9_-]*")

// ExtractJSON decodes a provider reply into a JSON value:
//  1. strip markdown code-fence delimiters
//  2. parse the cleaned text as JSON
//  3. else parse the span from the first '{' to the last '}'
//  4. else fail with common.ErrInvalidResponseFormat
//
// Nothing else is repaired (trailing commas, bad quoting stay fatal).
func ExtractJSON(text string) (any, error) {
	cleaned := strings.TrimSpace(reFence.ReplaceAllString(text, ""))

	var v any
	directErr := json.Unmarshal([]byte(cleaned), &v)
	if directErr == nil {
		return v, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found: %v", common.ErrInvalidResponseFormat, directErr)
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidResponseFormat, err)
	}
	return v, nil
}

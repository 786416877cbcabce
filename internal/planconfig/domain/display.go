package domain

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

// DisplayValue renders a numeric raw value for humans using the per-unit
// vocabulary. The -1 sentinel is checked before any unit formatting. The
// function is pure: both the configuration path and the legacy migration rely
// on it producing identical strings for identical input.
func DisplayValue(value float64, unit featuredomain.Unit, vocab config.DisplayConfig) string {
	if value == featuredomain.UnlimitedValue {
		return vocab.UnlimitedLabel
	}

	rendered := strconv.FormatFloat(value, 'f', -1, 64)
	noun, ok := vocab.Units[string(unit)]
	if !ok {
		// Unknown units fall back to the raw tag.
		noun = string(unit)
	}
	if noun == "" {
		return rendered
	}
	if noun == "%" {
		return rendered + "%"
	}
	return rendered + " " + noun
}

// DisplayFieldValue renders any field value variant. Non-numeric variants
// display their canonical raw form.
func DisplayFieldValue(value featuredomain.FieldValue, unit featuredomain.Unit, vocab config.DisplayConfig) string {
	if value.Type == featuredomain.FieldTypeNumber {
		return DisplayValue(value.Number, unit, vocab)
	}
	if value.Type == featuredomain.FieldTypeBoolean {
		if value.Bool {
			return "Yes"
		}
		return "No"
	}
	return strings.TrimSpace(value.Raw())
}

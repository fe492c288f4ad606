package criteria

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"reacher-incidents/models"
)

var operatorText = map[models.FilterType]string{
	models.FilterEqualTo:              "is equal to",
	models.FilterNotEqualTo:           "is not equal to",
	models.FilterGreaterThan:          "is greater than",
	models.FilterLessThan:             "is less than",
	models.FilterGreaterThanOrEqualTo: "is greater than or equal to",
	models.FilterLessThanOrEqualTo:    "is less than or equal to",
	models.FilterContains:             "contains",
	models.FilterNotContains:          "does not contain",
	models.FilterStartsWith:           "starts with",
	models.FilterEndsWith:             "ends with",
	models.FilterMatchesRegex:         "matches",
	models.FilterNotMatchesRegex:      "does not match",
}

func describe(op models.FilterType) string {
	if s, ok := operatorText[op]; ok {
		return s
	}
	return string(op)
}

// Operador negativo só vale para uma coleção quando vale para todos os itens.
func isNegative(op models.FilterType) bool {
	switch op {
	case models.FilterNotEqualTo, models.FilterNotContains, models.FilterNotMatchesRegex:
		return true
	}
	return false
}

func parseNumber(value string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return n, err == nil
}

// compareNumber aplica um operador numérico; valor de filtro inválido nunca casa.
func compareNumber(actual float64, f models.CriteriaFilter) bool {
	want, ok := parseNumber(f.Value)
	if !ok {
		return false
	}
	switch f.FilterType {
	case models.FilterEqualTo:
		return actual == want
	case models.FilterNotEqualTo:
		return actual != want
	case models.FilterGreaterThan:
		return actual > want
	case models.FilterLessThan:
		return actual < want
	case models.FilterGreaterThanOrEqualTo:
		return actual >= want
	case models.FilterLessThanOrEqualTo:
		return actual <= want
	}
	return false
}

// compareString aplica um operador textual. Regex inválida nunca casa.
func compareString(actual string, f models.CriteriaFilter) bool {
	switch f.FilterType {
	case models.FilterEqualTo:
		return actual == f.Value
	case models.FilterNotEqualTo:
		return actual != f.Value
	case models.FilterContains:
		return strings.Contains(actual, f.Value)
	case models.FilterNotContains:
		return !strings.Contains(actual, f.Value)
	case models.FilterStartsWith:
		return strings.HasPrefix(actual, f.Value)
	case models.FilterEndsWith:
		return strings.HasSuffix(actual, f.Value)
	case models.FilterIsEmpty:
		return strings.TrimSpace(actual) == ""
	case models.FilterIsNotEmpty:
		return strings.TrimSpace(actual) != ""
	case models.FilterMatchesRegex, models.FilterNotMatchesRegex:
		re, err := regexp.Compile(f.Value)
		if err != nil {
			return false
		}
		return re.MatchString(actual) == (f.FilterType == models.FilterMatchesRegex)
	}
	if n, ok := parseNumber(actual); ok {
		return compareNumber(n, f)
	}
	return false
}

// compareValue compara numericamente quando os dois lados são números.
func compareValue(actual string, f models.CriteriaFilter) bool {
	if a, ok := parseNumber(actual); ok {
		if _, ok := parseNumber(f.Value); ok {
			switch f.FilterType {
			case models.FilterEqualTo, models.FilterNotEqualTo, models.FilterGreaterThan, models.FilterLessThan,
				models.FilterGreaterThanOrEqualTo, models.FilterLessThanOrEqualTo:
				return compareNumber(a, f)
			}
		}
	}
	return compareString(actual, f)
}

// compareAny aplica um operador textual a uma coleção: operador positivo
// precisa de um item que case, negativo precisa de todos. IsEmpty e
// IsNotEmpty olham a coleção em si.
func compareAny(items []string, f models.CriteriaFilter) bool {
	switch f.FilterType {
	case models.FilterIsEmpty:
		return len(items) == 0
	case models.FilterIsNotEmpty:
		return len(items) > 0
	}
	if isNegative(f.FilterType) {
		for _, it := range items {
			if !compareString(it, f) {
				return false
			}
		}
		return true
	}
	for _, it := range items {
		if compareString(it, f) {
			return true
		}
	}
	return false
}

func compareBool(flag bool, f models.CriteriaFilter) bool {
	switch f.FilterType {
	case models.FilterTrue:
		return flag
	case models.FilterFalse:
		return !flag
	}
	return false
}

func numberCause(label string, actual float64, unit string, f models.CriteriaFilter) string {
	return fmt.Sprintf("%s %s%s %s %s%s.", label, formatNumber(actual), unit, describe(f.FilterType), f.Value, unit)
}

func stringCause(label string, f models.CriteriaFilter) string {
	switch f.FilterType {
	case models.FilterIsEmpty:
		return label + " is empty."
	case models.FilterIsNotEmpty:
		return label + " is not empty."
	}
	return fmt.Sprintf("%s %s %s.", label, describe(f.FilterType), f.Value)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package helpers

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize strips accents and lower-cases s, so "Crédit" and "credit" compare equal.
func Normalize(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return "", fmt.Errorf("error normalizing string\nERROR=%w", err)
	}
	return strings.ToLower(strings.TrimSpace(result)), nil
}

func CompareStrings(s1, s2 string) (bool, error) {
	n1, err := Normalize(s1)
	if err != nil {
		return false, fmt.Errorf("could not normalize s1\nERROR=%w", err)
	}
	n2, err := Normalize(s2)
	if err != nil {
		return false, fmt.Errorf("could not normalize s2\nERROR=%w", err)
	}
	return n1 == n2, nil
}

func StringInSlice(s string, l []string) (bool, error) {
	for _, candidate := range l {
		equal, err := CompareStrings(s, candidate)
		if err != nil {
			return false, err
		}
		if equal {
			return true, nil
		}
	}
	return false, nil
}

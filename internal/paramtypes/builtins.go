package paramtypes

import (
	"context"
	"strconv"
	"strings"

	"voxcmd/pkg/voxtypes"
)

// Built-in type names.
const (
	WordType   = "Word"
	StringType = "String"
	NumberType = "Number"
)

// Builtins returns fresh instances of the built-in types: a single Word, a
// greedy String of one or more words, and a Number written with digits or
// spelled out as a word.
func Builtins() []*Type {
	return []*Type{
		MustNew(WordType, "*"),
		MustNew(StringType, "**", Greedy()),
		MustNew(NumberType, "*", WithParser(parseNumber)),
	}
}

// spokenNumbers maps spelled-out numbers to values.
var spokenNumbers = map[string]int{
	"zero": 0, "oh": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	"hundred": 100,
	// Common transcription variants
	"niner": 9, "won": 1, "fife": 5,
}

func parseNumber(_ context.Context, obj *voxtypes.Object, substring string) (string, error) {
	word := strings.ToLower(strings.TrimSpace(substring))
	if n, err := strconv.Atoi(word); err == nil {
		obj.Value = n
		return substring, nil
	}
	if n, ok := spokenNumbers[word]; ok {
		obj.Value = n
		return substring, nil
	}
	return "", voxtypes.NewParseError(NumberType, substring, "not a number")
}

// IsBuiltin reports whether name is one of the built-in type names.
func IsBuiltin(name string) bool {
	switch name {
	case WordType, StringType, NumberType:
		return true
	}
	return false
}

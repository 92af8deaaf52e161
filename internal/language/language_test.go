package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndValidate(t *testing.T) {
	sch, err := LoadSchema(&Source{Name: "test", Input: `type Query { hello(name: String): String }`})
	require.NoError(t, err)

	doc, err := ParseQuery(`query Greet($n: String) { hello(name: $n) }`)
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	require.Equal(t, Query, doc.Operations[0].Operation)
	require.Empty(t, Validate(sch, doc))

	bad, err := ParseQuery(`{ goodbye }`)
	require.NoError(t, err)
	errs := Validate(sch, bad)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, "goodbye")
}

func TestParseQuerySyntaxError(t *testing.T) {
	_, err := ParseQuery(`{ hello `)
	require.Error(t, err)
	var located *Error
	require.ErrorAs(t, err, &located)
	require.NotEmpty(t, located.Locations)
}

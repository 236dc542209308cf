package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hickar/mailchew/internal/app/mailrep"
)

const sampleHeaderFields = "From: =?UTF-8?Q?Jos=C3=A9?= <jose@example.com>\r\n" +
	"To: a@example.com, \"Bee\" <b@example.com>\r\n" +
	"Subject: =?UTF-8?Q?Invitaci=C3=B3n?=\r\n" +
	"Message-ID: <abc@example.com>\r\n" +
	"References: <r1@example.com>\r\n <r2@example.com>\r\n" +
	"Received: first\r\n" +
	"Received: second"

func TestParseHeaderFields(t *testing.T) {
	fields, err := NewParser().ParseHeaderFields([]byte(sampleHeaderFields))
	require.NoError(t, err)

	assert.Equal(t, Value{Value: []any{
		Value{Value: mailrep.Address{Name: "José", Address: "jose@example.com"}},
	}}, fields.First("From"))

	assert.Equal(t, Value{Value: []any{
		Value{Value: mailrep.Address{Address: "a@example.com"}},
		Value{Value: mailrep.Address{Name: "Bee", Address: "b@example.com"}},
	}}, fields.First("to"))

	assert.Equal(t, Value{Value: "Invitación"}, fields.First("subject"))
	assert.Equal(t, Value{Value: "<abc@example.com>"}, fields.First("message-id"))

	refs, ok := fields.First("references").(Value)
	require.True(t, ok)
	assert.Contains(t, refs.Value, "<r1@example.com>")
	assert.Contains(t, refs.Value, "<r2@example.com>")

	assert.Len(t, fields["received"], 2)
	assert.Nil(t, fields.First("cc"))
}

func TestParseHeaderFieldsEmpty(t *testing.T) {
	fields, err := NewParser().ParseHeaderFields(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Nil(t, fields.First("from"))
}

func TestParseHeaderFieldsTrailingBlankLine(t *testing.T) {
	fields, err := NewParser().ParseHeaderFields([]byte("Subject: hi\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, Value{Value: "hi"}, fields.First("Subject"))
}

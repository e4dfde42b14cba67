package draft

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftline/internal/layout"
)

func TestValueJSON(t *testing.T) {
	fields := Fields{"name": String("Acme"), "amount": Number(1250.5), "notes": Null()}

	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Acme","amount":1250.5,"notes":null}`, string(raw))

	var decoded Fields
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, fields, decoded)

	var bad Value
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, Null(), ParseValue("null"))
	assert.Equal(t, Number(42), ParseValue("42"))
	assert.Equal(t, String("Acme Corp"), ParseValue("Acme Corp"))
	assert.Equal(t, "42", Number(42).Text())
	assert.True(t, String("").Empty())
	assert.False(t, Number(0).Empty())
}

func TestParseValueKeepsNonCanonicalNumbersAsStrings(t *testing.T) {
	assert.Equal(t, Number(-12.5), ParseValue("-12.5"))
	assert.Equal(t, Number(0), ParseValue("0"))
	for _, raw := range []string{"00501", "1.50", "1e3", "+7", "NaN", "inf", "-Inf"} {
		assert.Equal(t, String(raw), ParseValue(raw), raw)
	}
}

func TestNonFiniteNumbers(t *testing.T) {
	assert.True(t, Number(1).Finite())
	assert.True(t, String("NaN").Finite())
	assert.True(t, Null().Finite())
	for _, n := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		v := Number(n)
		assert.False(t, v.Finite())
		_, err := json.Marshal(v)
		assert.ErrorIs(t, err, ErrNotFinite)
	}
}

func TestPayloadHydrate_ExplicitFields(t *testing.T) {
	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "d1",
		"title": "NDA",
		"currentVersionId": "v1",
		"layout": {"pages": [{"pageNo": 1, "blocks": [{"key": "partyName", "text": "Party: ____", "editable": true}]}]},
		"fields": {"partyName": null},
		"blocks": [{"key": "partyName", "value": "ignored"}]
	}`), &payload))

	source := ResolveFieldSource(payload)
	assert.IsType(t, ExplicitFields{}, source)

	d := payload.Hydrate()
	assert.Equal(t, StatusDraft, d.Status)
	assert.True(t, d.HasLayout())
	assert.Equal(t, Fields{"partyName": Null()}, d.Fields)
}

func TestPayloadHydrate_LegacyBlocks(t *testing.T) {
	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "d1",
		"status": "exported",
		"layout": {"pages": []},
		"blocks": [
			{"key": "partyName", "value": "Acme"},
			{"key": "fee", "value": 300},
			{"key": "signature", "editable": true},
			{"key": "heading"}
		],
		"fallbackHtml": "<p>legacy</p>"
	}`), &payload))

	assert.Nil(t, payload.Fields)
	assert.IsType(t, DerivedFromBlocks{}, ResolveFieldSource(payload))

	d := payload.Hydrate()
	assert.False(t, d.HasLayout())
	assert.Equal(t, StatusExported, d.Status)
	assert.Equal(t, Fields{"partyName": String("Acme"), "fee": Number(300), "signature": Null()}, d.Fields)
}

func TestPayloadHydrate_NoFieldsAnywhere(t *testing.T) {
	d := Payload{ID: "d1"}.Hydrate()
	assert.NotNil(t, d.Fields)
	assert.Empty(t, d.Fields)
}

func TestOrphanKeys(t *testing.T) {
	pages := []layout.Page{{PageNo: 1, Blocks: []layout.Block{
		{Key: "partyName", Editable: true},
		{Key: "heading"},
	}}}
	schema := &Schema{Fields: []SchemaField{{Key: "fee", Type: TypeNumber}}}

	known := KnownKeys(pages, schema)
	assert.Len(t, known, 2)

	orphans := OrphanKeys(Fields{"partyName": Null(), "fee": Number(1), "heading": Null(), "zzz": Null()}, known)
	assert.Equal(t, []string{"heading", "zzz"}, orphans)
}

func TestSchemaValidate(t *testing.T) {
	minLen, maxLen := 2, 10
	low, high := 1.0, 1000.0
	schema := &Schema{Fields: []SchemaField{
		{Key: "partyName", Type: TypeString, Required: true, MinLength: &minLen, MaxLength: &maxLen},
		{Key: "fee", Type: TypeNumber, Min: &low, Max: &high},
		{Key: "effectiveDate", Type: TypeDate},
		{Key: "jurisdiction", Type: TypeSelect, Options: []string{"New York", "Delaware"}},
		{Key: "witness", Type: TypeString, Required: true},
	}}

	problems := schema.Validate(Fields{
		"partyName":     String("A"),
		"fee":           Number(5000),
		"effectiveDate": String("2026/01/01"),
		"jurisdiction":  String("Texas"),
	})

	rules := map[string]string{}
	for _, p := range problems {
		rules[p.Key] = p.Rule
	}
	assert.Equal(t, map[string]string{
		"effectiveDate": "datetime",
		"fee":           "lte",
		"jurisdiction":  "oneof",
		"partyName":     "min",
		"witness":       "required",
	}, rules)
	assert.Equal(t, "effectiveDate", problems[0].Key)

	clean := schema.Validate(Fields{
		"partyName":     String("Acme"),
		"fee":           Number(10),
		"effectiveDate": String("2026-01-01"),
		"jurisdiction":  String("New York"),
		"witness":       String("J. Doe"),
	})
	assert.Empty(t, clean)
}

func TestSchemaValidate_TypeMismatch(t *testing.T) {
	schema := &Schema{Fields: []SchemaField{{Key: "fee", Type: TypeNumber}, {Key: "name", Type: TypeString}}}
	problems := schema.Validate(Fields{"fee": String("ten"), "name": Number(3)})
	require.Len(t, problems, 2)
	assert.Equal(t, "type", problems[0].Rule)
	assert.Equal(t, "type", problems[1].Rule)

	var nilSchema *Schema
	assert.Nil(t, nilSchema.Validate(Fields{"x": Null()}))
}

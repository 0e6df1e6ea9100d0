package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestAllSchemasCompile(t *testing.T) {
	v := newTestValidator(t)
	for _, name := range []string{Register, Login, Profile, CreateGig, EditGig, Proposal, Credits, CreditCard} {
		assert.Contains(t, v.schemas, name)
	}
}

func TestDecodeCreateGig_Valid(t *testing.T) {
	v := newTestValidator(t)
	var in struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Price       int64    `json:"price"`
		Skills      []string `json:"skills"`
	}
	body := `{"name":"Landing page","description":"Build it","price":50,"skills":["React","Nodejs"]}`
	require.NoError(t, v.Decode(CreateGig, []byte(body), &in))
	assert.Equal(t, "Landing page", in.Name)
	assert.Equal(t, int64(50), in.Price)
	assert.Equal(t, []string{"React", "Nodejs"}, in.Skills)
}

func TestDecode_Invalid(t *testing.T) {
	v := newTestValidator(t)
	cases := []struct {
		name   string
		schema string
		body   string
		field  string
	}{
		{name: "missing price", schema: CreateGig, body: `{"name":"n","description":"d"}`, field: "price"},
		{name: "zero price", schema: CreateGig, body: `{"name":"n","description":"d","price":0}`, field: "price"},
		{name: "fractional price", schema: CreateGig, body: `{"name":"n","description":"d","price":1.5}`, field: "price"},
		{name: "unknown skill", schema: CreateGig, body: `{"name":"n","description":"d","price":1,"skills":["Cobol"]}`, field: "skills"},
		{name: "empty name", schema: EditGig, body: `{"name":"","description":"d"}`, field: "name"},
		{name: "short proposal", schema: Proposal, body: `{"proposal":"hi"}`, field: "proposal"},
		{name: "bad email", schema: Register, body: `{"email":"nope","password":"longenough","name":"A"}`, field: "email"},
		{name: "short password", schema: Register, body: `{"email":"a@example.com","password":"short","name":"A"}`, field: "password"},
		{name: "negative credits", schema: Credits, body: `{"amount":-1}`, field: "amount"},
		{name: "card letters", schema: CreditCard, body: `{"holder_name":"A","number":"4242abcd4242"}`, field: "number"},
		{name: "not json", schema: Login, body: `{`, field: "body"},
		{name: "trailing data", schema: Credits, body: `{"amount":5} {"amount":6}`, field: "body"},
		{name: "credits over max", schema: Credits, body: `{"amount":1000001}`, field: "amount"},
		{name: "credits as string", schema: Credits, body: `{"amount":"5"}`, field: "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dst map[string]any
			err := v.Decode(tc.schema, []byte(tc.body), &dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			var fe *apperr.FieldError
			require.True(t, errors.As(err, &fe), "got %T: %v", err, err)
			assert.Equal(t, tc.field, fe.Field)
		})
	}
}

func TestDecodeCredits_IntegerBounds(t *testing.T) {
	v := newTestValidator(t)
	for _, body := range []string{`{"amount":1}`, `{"amount":1000000}`, " {\"amount\":42}\n"} {
		var in struct {
			Amount int64 `json:"amount"`
		}
		require.NoError(t, v.Decode(Credits, []byte(body), &in), body)
		assert.Positive(t, in.Amount)
	}
}

func TestDecodeProposal_MinLength(t *testing.T) {
	v := newTestValidator(t)
	var in struct {
		Proposal string `json:"proposal"`
	}
	body := `{"proposal":"` + strings.Repeat("a", 100) + `"}`
	assert.NoError(t, v.Decode(Proposal, []byte(body), &in))
}

func TestDecode_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)
	var dst map[string]any
	err := v.Decode("nope", []byte(`{}`), &dst)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrValidation))
}

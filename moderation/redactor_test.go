package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Listed_words_are_masked(t *testing.T) {
	r, err := NewRedactor([]string{"secret"}, '*')
	require.NoError(t, err)

	assert.Equal(t, "the ****** plan", r.Redact("the secret plan"))
	assert.Equal(t, "the ****** plan", r.Redact("the SeCrEt plan"))
}

func Test_Punctuation_does_not_hide_a_match(t *testing.T) {
	r, err := NewRedactor([]string{"secret"}, '*')
	require.NoError(t, err)

	assert.Equal(t, "***********", r.Redact("s.e.c.r.e.t"))
}

func Test_Unlisted_text_is_untouched(t *testing.T) {
	r, err := NewRedactor([]string{"secret"}, '*')
	require.NoError(t, err)

	in := "nothing to see hëre"
	assert.Equal(t, in, r.Redact(in))
}

func Test_Nil_redactor_passes_through(t *testing.T) {
	var r *Redactor
	assert.Equal(t, "as is", r.Redact("as is"))
}

func Test_Empty_word_list_yields_no_redactor(t *testing.T) {
	r, err := NewRedactor(nil, '*')
	require.NoError(t, err)
	assert.Nil(t, r)
}

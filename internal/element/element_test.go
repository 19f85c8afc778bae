package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		elementType string
		want        Kind
	}{
		{"email_field", KindInput},
		{"password_field", KindInput},
		{"Username", KindInput},
		{"submit_button", KindButton},
		{"login_button", KindButton},
		{"sign-in", KindButton},
		{"forgot_password_link", KindLink},
		{"link", KindLink},
		{"search_button", KindButton},
		{"avatar", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.elementType, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.elementType))
		})
	}
}

func TestIsSubmission(t *testing.T) {
	assert.True(t, IsSubmission("submit_button"))
	assert.True(t, IsSubmission("login_button"))
	assert.True(t, IsSubmission("Sign In"))
	assert.False(t, IsSubmission("upload_button"))
	assert.False(t, IsSubmission("email_field"))
}

func TestIsField(t *testing.T) {
	assert.True(t, IsField("email_field"))
	assert.False(t, IsField("submit_button"))
}

package platform

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/disgoorg/disgo/rest"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain error", plain, plain},
		{"unknown message code", &rest.Error{Code: codeUnknownMessage}, ErrNotFound},
		{"unknown member code", &rest.Error{Code: codeUnknownMember}, ErrNotFound},
		{"missing permissions code", &rest.Error{Code: codeMissingPermissions}, ErrForbidden},
		{"missing access code", &rest.Error{Code: codeMissingAccess}, ErrForbidden},
		{"404 status", &rest.Error{Response: &http.Response{StatusCode: http.StatusNotFound}}, ErrNotFound},
		{"403 status", &rest.Error{Response: &http.Response{StatusCode: http.StatusForbidden}}, ErrForbidden},
		{"wrapped", fmt.Errorf("call: %w", &rest.Error{Code: codeMissingPermissions}), ErrForbidden},
		{"value code", rest.Error{Code: codeUnknownMessage}, ErrNotFound},
		{"wrapped value status", fmt.Errorf("call: %w", rest.Error{
			Response: &http.Response{StatusCode: http.StatusForbidden},
		}), ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}

			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("server error untouched", func(t *testing.T) {
		t.Parallel()

		err := &rest.Error{Response: &http.Response{StatusCode: http.StatusInternalServerError}}
		got := classify(err)
		assert.NotErrorIs(t, got, ErrNotFound)
		assert.NotErrorIs(t, got, ErrForbidden)
	})
}

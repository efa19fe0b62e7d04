package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/digifynow/autofill-agent/internal/engine"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "email exists", err: &ErrEmailAlreadyExists{Email: "a@b.de"}, want: http.StatusConflict},
		{name: "run in progress", err: &engine.RunInProgressError{BasisRef: "template:x", CustomerID: uuid.New()}, want: http.StatusConflict},
		{name: "invalid credentials", err: &ErrInvalidCredentials{}, want: http.StatusUnauthorized},
		{name: "forbidden", err: &ErrForbidden{}, want: http.StatusForbidden},
		{name: "not found", err: &ErrNotFound{Resource: "template", ID: uuid.New()}, want: http.StatusNotFound},
		{name: "run not found", err: &engine.RunNotFoundError{RunID: uuid.New()}, want: http.StatusNotFound},
		{name: "validation", err: &ErrValidation{Field: "name", Message: "required"}, want: http.StatusBadRequest},
		{name: "generic", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	id := uuid.New()
	assert.Contains(t, (&ErrEmailAlreadyExists{Email: "a@b.de"}).Error(), "a@b.de")
	assert.Contains(t, (&ErrNotFound{Resource: "customer", ID: id}).Error(), id.String())
	assert.Equal(t, "invalid email or password", (&ErrInvalidCredentials{}).Error())
}

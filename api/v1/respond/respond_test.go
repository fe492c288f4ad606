package respond

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"reacher-incidents/models"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("incident x: %w", models.ErrNotFound), http.StatusNotFound},
		{models.BadData("stateId is required"), http.StatusBadRequest},
		{models.NewConfigurationError("no resolved state"), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", models.ErrConflict), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("%v: got %d, want %d", tc.err, got, tc.want)
		}
	}
}

// Package classify maps provider SDK errors onto the scene error taxonomy.
package classify

import (
	"errors"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"directorscut/internal/domain/scene"
)

// Google tags errors from the Google clients. Cloud TTS speaks gRPC while
// the Gemini client speaks REST, so both status forms are checked.
func Google(op string, err error) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return scene.NewError(scene.ErrMissingCredential, op, err)
		}
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && unauthorized(apiErr.HTTPCode()) {
		return scene.NewError(scene.ErrMissingCredential, op, err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && unauthorized(gErr.Code) {
		return scene.NewError(scene.ErrMissingCredential, op, err)
	}
	return scene.NewError(scene.ErrNetworkFailure, op, err)
}

func unauthorized(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// OpenAI tags errors from go-openai.
func OpenAI(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && unauthorized(apiErr.HTTPStatusCode) {
		return scene.NewError(scene.ErrMissingCredential, op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && unauthorized(reqErr.HTTPStatusCode) {
		return scene.NewError(scene.ErrMissingCredential, op, err)
	}
	return scene.NewError(scene.ErrNetworkFailure, op, err)
}

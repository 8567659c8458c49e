package http

import (
	"net/http"

	"github.com/go-chi/render"
)

type HttpErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	ErrorText      string `json:"error"`
}

func (e *HttpErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errUnauthorized(err error) render.Renderer {
	return &HttpErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		ErrorText:      "Unauthorized",
	}
}

func errUnexpected(err error) render.Renderer {
	return &HttpErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		ErrorText:      "Internal Server Error",
	}
}

func errInvalidRequest(err error) render.Renderer {
	return &HttpErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		ErrorText:      "Invalid Request",
	}
}

func errBadGateway(err error) render.Renderer {
	return &HttpErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadGateway,
		ErrorText:      "Upstream Unavailable",
	}
}

package app

import (
	"encoding/json"
	"fmt"
	"io"

	clierr "github.com/yetify/yetify-cli/internal/errors"
)

// Envelope is the uniform CLI output shape.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func successEnvelope(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func errorEnvelope(err error) Envelope {
	return Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    clierr.ExitCode(err),
			Message: err.Error(),
		},
	}
}

func render(w io.Writer, env Envelope, outputMode string) error {
	if outputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	if env.Error != nil {
		_, err := fmt.Fprintf(w, "error (%d): %s\n", env.Error.Code, env.Error.Message)
		return err
	}
	buf, err := json.Marshal(env.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(buf))
	return err
}

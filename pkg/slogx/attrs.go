// Package slogx holds the slog attributes quill logs with, so every package
// uses the same keys.
package slogx

import (
	"log/slog"
)

const (
	KeyError  = "error"
	KeyPrompt = "prompt"
	KeyModel  = "model"
	KeyParser = "parser"
	// KeyLoggerName is the key for the name of the component that logged.
	KeyLoggerName = "logger"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
// A nil error is rendered as an empty string.
//
// Parameters:
//   - err: The error to be converted into a slog.Attr.
//
// Returns:
//   - slog.Attr: An attribute with the key "error" and the error's message as the value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Prompt creates a slog.Attr naming the prompt being processed.
// The attribute key is defined by KeyPrompt.
//
// Parameters:
//   - name: The name of the prompt within its document.
//
// Returns:
//   - slog.Attr: An attribute with the key "prompt" and the prompt name as the value.
func Prompt(name string) slog.Attr {
	return slog.String(KeyPrompt, name)
}

// Model creates a slog.Attr naming the model a prompt runs against.
// The attribute key is defined by KeyModel.
//
// Parameters:
//   - name: The model name, as stored in the prompt's model reference.
//
// Returns:
//   - slog.Attr: An attribute with the key "model" and the model name as the value.
func Model(name string) slog.Attr {
	return slog.String(KeyModel, name)
}

// Parser creates a slog.Attr naming the parser handling a prompt.
// The attribute key is defined by KeyParser.
//
// Parameters:
//   - id: The id the parser is registered under.
//
// Returns:
//   - slog.Attr: An attribute with the key "parser" and the parser id as the value.
func Parser(id string) slog.Attr {
	return slog.String(KeyParser, id)
}

// LoggerName creates a slog.Attr with the provided logger name.
// The attribute key is defined by KeyLoggerName.
//
// Parameters:
//   - name: The name of the logger.
//
// Returns:
//
//	A slog.Attr containing the logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

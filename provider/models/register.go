// Package models holds the static catalog of well-known model names and the
// parser each of them runs on.
package models

import (
	"github.com/casualjim/quill/parser"
	"github.com/casualjim/quill/provider/huggingface"
	"github.com/casualjim/quill/provider/openai"
)

// Chat lists the OpenAI chat-completion models.
var Chat = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
	"o1",
	"o1-mini",
}

// Completion lists the OpenAI text-completion models.
var Completion = []string{
	"gpt-3.5-turbo-instruct",
	"davinci-002",
	"babbage-002",
}

// TextGeneration lists Hugging Face text-generation models.
var TextGeneration = []string{
	"mistralai/Mistral-7B-Instruct-v0.3",
	"meta-llama/Meta-Llama-3-8B-Instruct",
	"HuggingFaceH4/zephyr-7b-beta",
}

// Defaults maps every catalog model to the id of the parser it runs on.
func Defaults() map[string]string {
	out := make(map[string]string, len(Chat)+len(Completion)+len(TextGeneration))
	for _, m := range Chat {
		out[m] = openai.ChatParserID
	}
	for _, m := range Completion {
		out[m] = openai.CompletionParserID
	}
	for _, m := range TextGeneration {
		out[m] = huggingface.ParserID
	}
	return out
}

// Register binds the catalog models to the parser ids in r. Parsers are
// registered separately; a model bound to an id that is never registered
// resolves to parser.ErrParserNotFound.
func Register(r *parser.Registry) {
	for model, id := range Defaults() {
		r.Bind(model, id)
	}
}

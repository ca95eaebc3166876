// Package document defines the portable prompt-chain document: an ordered
// list of named prompts, the global settings for every model they use, and
// the outputs recorded by running them.
//
// A Document is plain data. It does not know how to talk to a provider;
// the parser packages read prompts from it and append outputs to it. The
// JSON encoding is stable: decoding and re-encoding a document keeps prompt
// order, settings key order and every output shape, including the legacy
// raw chat-message outputs written by older versions of the format.
//
// Example:
//
//	doc := document.New("trip planner")
//	doc.SetGlobalSettings("gpt-4", jsonx.FromPairs("temperature", 0.2))
//	_ = doc.AddPrompt(&document.Prompt{
//	    Name:  "plan",
//	    Input: document.TextInput("Plan a trip to {{city}}"),
//	    Metadata: &document.PromptMetadata{
//	        Model: document.ModelName("gpt-4"),
//	    },
//	})
package document

/*
Package openai implements the chat-completion and text-completion parsers for
OpenAI compatible endpoints.

# Parsers

  - ChatParser: POST chat/completions. Conversational: the request messages
    are rebuilt from the document with the history package.
  - CompletionParser: POST completions. Single turn: the resolved prompt
    input is sent as "prompt".

Both stream by default. The HTTP client is created on first use, from
WithAPIKey or the OPENAI_API_KEY environment variable; a missing key fails the
first call with a configuration error.

# Serialization

A chat request such as

	{
	  "model": "gpt-4o-mini",
	  "temperature": 0.2,
	  "messages": [
	    {"role": "system", "content": "Be brief."},
	    {"role": "user", "content": "Hi"},
	    {"role": "assistant", "content": "Hello!"},
	    {"role": "user", "content": "How are you?"}
	  ]
	}

serializes into two prompts, "<name>_1" and "<name>", each referencing
gpt-4o-mini with the settings the document does not already hold globally.
The system message becomes the "system_prompt" setting and the assistant
message becomes the output of the first prompt.

# Streaming

Chunks are folded with the stream package. Tool call deltas arrive as arrays
addressed by "index"; they are keyed by that index before folding so the
argument fragments of each call concatenate, and turned back into arrays
when the outputs are built.

# Usage

	chat, err := openai.NewChatParser(openai.WithAPIKey(key))
	if err != nil {
		return err
	}
	outputs, err := chat.Run(ctx, prompt, doc, &parser.RunOptions{
		StreamCallback: func(delta, _ string, _ int) { fmt.Print(delta) },
	}, nil)
*/
package openai

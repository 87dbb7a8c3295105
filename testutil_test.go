package main

import (
	openai "github.com/sashabaranov/go-openai"
)

func toolCall(id, name, args string) openai.ToolCall {
	tc := openai.ToolCall{ID: id, Type: openai.ToolTypeFunction}
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

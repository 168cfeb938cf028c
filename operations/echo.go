package operations

import (
	"fmt"
	"strings"
)

// Echo is a stand-in engine that repeats what the user says. It exists so
// the console can run and be exercised without a real engine attached.
type Echo struct {
	// Prompt is sent with SET_USER_PROMPT when the session opens.
	Prompt string

	// Greeting is said when the session opens. Empty skips it.
	Greeting string

	// Farewell is the GOODBYE payload.
	Farewell string

	// ExitWords end the session when the user types one of them
	// (case-insensitive).
	ExitWords []string
}

// NewEcho returns an Echo with its usual settings.
func NewEcho() *Echo {
	return &Echo{
		Prompt:    "You: ",
		Greeting:  "Hello. Type something and I will say it back. Type bye to leave.",
		Farewell:  "Goodbye!",
		ExitWords: []string{"bye", "quit", "exit"},
	}
}

// OnReady implements Engine.
func (e *Echo) OnReady(reply Replier) error {
	if e.Prompt != "" {
		reply.SetUserPrompt(e.Prompt)
	}
	if e.Greeting != "" {
		reply.Say(e.Greeting)
	}
	return nil
}

// OnSay implements Engine.
func (e *Echo) OnSay(text string, reply Replier) error {
	for _, word := range e.ExitWords {
		if strings.EqualFold(text, word) {
			reply.Goodbye(e.Farewell)
			return nil
		}
	}

	if text == "" {
		reply.Say("...")
		return nil
	}

	reply.Say(fmt.Sprintf("You said: %s", text))
	return nil
}

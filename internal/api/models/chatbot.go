package models

import "github.com/breatheroute/aqiguard/internal/chatbot"

// ChatRequest is the body of a chatbot message.
type ChatRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

// ChatResponse is the bot's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ChatExchange is one message and its reply.
type ChatExchange struct {
	User string    `json:"user"`
	Bot  string    `json:"bot"`
	At   Timestamp `json:"at"`
}

// ChatHistory lists a subject's exchanges, oldest first.
type ChatHistory struct {
	Items []ChatExchange `json:"items"`
}

// NewChatHistory converts the stored exchange log.
func NewChatHistory(exchanges []chatbot.Exchange) ChatHistory {
	items := make([]ChatExchange, 0, len(exchanges))
	for _, e := range exchanges {
		items = append(items, ChatExchange{User: e.User, Bot: e.Bot, At: Timestamp(e.At)})
	}
	return ChatHistory{Items: items}
}
